package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	ember "github.com/emberdb/goember"
)

func main() {
	if !flag.Parsed() {
		flag.Parse()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer func() {
		signal.Stop(c)
		cancel()
	}()
	go func() {
		<-c
		log.Println("Caught signal, canceling...")
		cancel()
	}()

	env := func(k string) string {
		if value := os.Getenv(k); value != "" {
			return value
		}
		log.Fatalf("%v environment variable is not set.", k)
		return ""
	}

	dsn := env("EMBER_TEST_DSN")
	conn, err := ember.ConnectDSN(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect. err: %v", err)
	}
	defer conn.Close()

	stmt, err := conn.NewStatement()
	if err != nil {
		log.Fatalf("failed to create a statement. err: %v", err)
	}
	defer stmt.Close()

	query := "SELECT 1"
	cur, err := stmt.Query(ctx, query, nil)
	if err != nil {
		log.Fatalf("failed to run a query. %v, err: %v", query, err)
	}
	for cur.Next() {
		v, err := cur.GetInt32(1)
		if err != nil {
			log.Fatalf("failed to get result. err: %v", err)
		}
		if v != 1 {
			log.Fatalf("failed to get 1. got: %v", v)
		}
	}
	if cur.Err() != nil {
		fmt.Printf("ERROR: %v\n", cur.Err())
		return
	}
	fmt.Printf("Congrats! You have successfully run %v with Ember!\n", query)
}
