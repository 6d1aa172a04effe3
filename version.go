// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

// EmberGoDriverVersion is the version of the Go Ember client.
const EmberGoDriverVersion = "0.3.0"
