package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	ember "github.com/emberdb/goember"
)

func main() {
	if !flag.Parsed() {
		flag.Parse()
	}
	dsn := os.Getenv("EMBER_TEST_DSN")
	if dsn == "" {
		log.Fatalf("EMBER_TEST_DSN environment variable is not set.")
	}

	ctx := context.Background()
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

	fmt.Println("Lets simulate a long running query")
	label, err := stmt.ExecuteAsync(ctx, "SELECT sleepEachRow(1) FROM numbers(10)", nil)
	if err != nil {
		log.Fatalf("failed to submit the query. err: %v", err)
	}
	fmt.Printf("The query is running asynchronously. label: %v\n", label)

	running, err := conn.IsRunning(ctx, label)
	if err != nil {
		log.Fatalf("failed to get the query status. err: %v", err)
	}
	fmt.Printf("running: %v\n", running)

	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	status, err := conn.WaitForQuery(waitCtx, label)
	if err == nil {
		fmt.Printf("finished early. status: %v\n", status.Status)
		return
	}

	fmt.Println("Taking too long, aborting")
	aborted, err := conn.Abort(ctx, label)
	if err != nil {
		log.Fatalf("failed to abort the query. err: %v", err)
	}
	fmt.Printf("aborted: %v\n", aborted)
	// a second abort finds nothing to cancel
	aborted, err = conn.Abort(ctx, label)
	if err != nil {
		log.Fatalf("failed to abort the query. err: %v", err)
	}
	fmt.Printf("aborted again: %v\n", aborted)
}
