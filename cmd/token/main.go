// Command token mints an HS256 bearer token for calling the API, e.g.
//
//	go run ./cmd/token -sub alice -role CUSTOMER
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/sirawit8921/massage-shop-reservation/internal/utils"
)

func main() {
	_ = godotenv.Load()
	sub := flag.String("sub", "", "subject (user id)")
	role := flag.String("role", "CUSTOMER", "CUSTOMER or ADMIN")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
	flag.Parse()

	tok, err := utils.NewAccessToken(*secret, *sub, *role, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tok.Token)
}
