// Command main runs the database seeder for Courtyard.
package main

import (
	"flag"
	"log"

	"courtyard/internal/config"
	"courtyard/internal/database"
	"courtyard/internal/seed"
)

func main() {
	numResidents := flag.Int("residents", 50, "Number of resident identities to synthesize")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d residents, %d posts, clean=%v\n", *numResidents, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumResidents: *numResidents,
		NumPosts:     *numPosts,
		ShouldClean:  *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
