// Command main runs the database seeder for the bulletin board.
package main

import (
	"flag"
	"log"

	"bulletinboard/internal/config"
	"bulletinboard/internal/database"
	"bulletinboard/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of accounts to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "Store plaintext passwords (dev fast mode)")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	factory := seed.NewFactory(db, seed.Options{
		Users:      *numUsers,
		Posts:      *numPosts,
		SkipBcrypt: *skipBcrypt,
		DryRun:     *dryRun,
	})

	if *shouldClean {
		if err := factory.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	if err := factory.Run(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("All seeded accounts use the password: password123")
}
