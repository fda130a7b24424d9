// Package main is a utility for generating bcrypt hashes of passwords. The
// users table stores only bcrypt hashes, so this tool is used when manually
// seeding an admin account in a local database without running the full
// registration flow.
package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <password>", os.Args[0])
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(hash))
}
