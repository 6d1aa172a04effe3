package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	ember "github.com/emberdb/goember"
)

// Reads the connection from $EMBER_HOME/connections.toml, for example:
//
//	[default]
//	host = "acme.ember.example"
//	user = "alice"
//	password = "secret"
//	database = "analytics"
//	engine = "main"
func main() {
	if !flag.Parsed() {
		flag.Parse()
	}
	if _, ok := os.LookupEnv("EMBER_HOME"); !ok {
		log.Println("EMBER_HOME is not set, reading ~/.ember/connections.toml")
	}

	cfg, err := ember.LoadConnectionConfig()
	if err != nil {
		log.Fatalf("failed to load the connection config. err: %v", err)
	}
	ctx := context.Background()
	conn, err := ember.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect. err: %v", err)
	}
	defer conn.Close()

	stmt, err := conn.NewStatement()
	if err != nil {
		log.Fatalf("failed to create a statement. err: %v", err)
	}
	defer stmt.Close()

	cur, err := stmt.Query(ctx, "SELECT 1", nil)
	if err != nil {
		log.Fatalf("failed to run a query. err: %v", err)
	}
	defer cur.Close()
	var v int32
	for cur.Next() {
		if err = cur.Scan(&v); err != nil {
			log.Fatalf("failed to get result. err: %v", err)
		}
	}
	fmt.Printf("Connected to %v/%v. SELECT 1 returned %v\n", conn.Database(), conn.Engine(), v)
}
