package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

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

	printSelectDemo(ctx, stmt)
	printSetDemo(ctx, conn, stmt)
}

func printSelectDemo(ctx context.Context, stmt *ember.Statement) {
	fmt.Println("SELECTs only")
	query := `
		SELECT 'table 1, row ' || ?, 11;
		SELECT 'table 2, row ' || ?, 21;
	`
	fmt.Println(query)

	chain, err := stmt.ExecuteValues(ctx, query, 1, 2)
	if err != nil {
		log.Fatalf("failed to run the batch. err: %v", err)
	}
	defer chain.Close()

	for node := chain.Head(); node != nil; node = node.Next() {
		fmt.Printf("statement %v: %v\n", node.Statement.Index, node.Statement.SQL)
		if node.Cursor == nil {
			continue
		}
		for node.Cursor.Next() {
			var str string
			var n int32
			if err = node.Cursor.Scan(&str, &n); err != nil {
				log.Fatalf("failed to scan a row. err: %v", err)
			}
			fmt.Println(str, " | ", n)
		}
		if err = node.Cursor.Err(); err != nil {
			log.Fatalf("failed to read results. err: %v", err)
		}
	}
}

func printSetDemo(ctx context.Context, conn *ember.Connection, stmt *ember.Statement) {
	fmt.Println("SET statements are applied to the session")
	query := "SET time_zone = 'Europe/Berlin'; SELECT now();"
	fmt.Println(query)

	cur, err := stmt.Query(ctx, query, nil)
	if err != nil {
		log.Fatalf("failed to run the batch. err: %v", err)
	}
	defer cur.Close()
	for cur.Next() {
		ts, err := cur.GetString(1)
		if err != nil {
			log.Fatalf("failed to read a value. err: %v", err)
		}
		fmt.Println(ts)
	}
	fmt.Printf("session properties: %v\n", conn.SessionProperties())
}
