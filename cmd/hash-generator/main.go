// Command hash-generator produces the bcrypt hash expected in the
// TASKFORGE_AUTH_ADMIN_PASSWORD_HASH setting.
//
// Usage:
//
//	hash-generator <password>
package main

import (
	"fmt"
	"os"

	"github.com/taskforge/taskforge-api/internal/service/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hash-generator <password>")
		os.Exit(2)
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
