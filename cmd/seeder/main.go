package main

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/harborline/tablepos/internal/config"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MenuItem represents a product in the seed data JSON
type MenuItem struct {
	Name             string   `json:"name"`
	Price            float64  `json:"price"`
	HalfPortionPrice *float64 `json:"half_portion_price"`
	Category         string   `json:"category"`
}

// MenuData holds the menu items to be seeded
var MenuData = []byte(`[
  { "name": "Grilled Sea Bass", "price": 34.00, "half_portion_price": 19.00, "category": "Mains" },
  { "name": "Lamb Shank", "price": 29.50, "category": "Mains" },
  { "name": "Ribeye Steak", "price": 42.00, "category": "Mains" },
  { "name": "Chicken Skewers", "price": 21.00, "half_portion_price": 12.00, "category": "Mains" },
  { "name": "Seafood Linguine", "price": 26.00, "category": "Mains" },
  { "name": "Stuffed Vine Leaves", "price": 11.50, "category": "Starters" },
  { "name": "Calamari", "price": 14.00, "half_portion_price": 8.00, "category": "Starters" },
  { "name": "Burrata & Tomato", "price": 12.50, "category": "Starters" },
  { "name": "Lentil Soup", "price": 8.00, "category": "Starters" },
  { "name": "Shepherd Salad", "price": 9.50, "half_portion_price": 5.50, "category": "Salads" },
  { "name": "Caesar Salad", "price": 13.00, "category": "Salads" },
  { "name": "Baklava", "price": 9.00, "category": "Desserts" },
  { "name": "Chocolate Fondant", "price": 10.50, "category": "Desserts" },
  { "name": "Rice Pudding", "price": 7.00, "category": "Desserts" },
  { "name": "Espresso", "price": 3.50, "category": "Drinks" },
  { "name": "Turkish Tea", "price": 2.50, "category": "Drinks" },
  { "name": "Fresh Orange Juice", "price": 6.00, "category": "Drinks" },
  { "name": "Sparkling Water", "price": 4.00, "category": "Drinks" },
  { "name": "House Red (Glass)", "price": 8.50, "category": "Drinks" },
  { "name": "House White (Glass)", "price": 8.50, "category": "Drinks" }
]`)

// SeedTable describes one floor table to create
type SeedTable struct {
	Number   string
	Zone     string
	Capacity int
}

// SeedOperator describes one operator with a login PIN
type SeedOperator struct {
	Name string
	Role string
	PIN  string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✓ Database connection established")

	seedProducts(db)
	seedTables(db)
	seedOperators(db)

	log.Println("✓ Seeding completed")
}

func seedProducts(db *gorm.DB) {
	var items []MenuItem
	if err := json.Unmarshal(MenuData, &items); err != nil {
		log.Fatalf("Failed to parse menu data: %v", err)
	}

	for _, item := range items {
		var count int64
		db.Table("products").Where("name = ?", item.Name).Count(&count)
		if count > 0 {
			continue
		}

		record := map[string]interface{}{
			"id":        uuid.New().String(),
			"name":      item.Name,
			"category":  item.Category,
			"price":     item.Price,
			"is_active": true,
		}
		if item.HalfPortionPrice != nil {
			record["half_portion_price"] = *item.HalfPortionPrice
		}

		if err := db.Table("products").Create(record).Error; err != nil {
			log.Fatalf("Failed to seed product %s: %v", item.Name, err)
		}
		log.Printf("  seeded product: %s", item.Name)
	}
}

func seedTables(db *gorm.DB) {
	tables := []SeedTable{
		{Number: "I1", Zone: "INSIDE", Capacity: 4},
		{Number: "I2", Zone: "INSIDE", Capacity: 4},
		{Number: "I3", Zone: "INSIDE", Capacity: 2},
		{Number: "I4", Zone: "INSIDE", Capacity: 6},
		{Number: "O1", Zone: "OUTSIDE", Capacity: 4},
		{Number: "O2", Zone: "OUTSIDE", Capacity: 4},
		{Number: "O3", Zone: "OUTSIDE", Capacity: 8},
		{Number: "T1", Zone: "TERRACE", Capacity: 2},
		{Number: "T2", Zone: "TERRACE", Capacity: 4},
		{Number: "T3", Zone: "TERRACE", Capacity: 4},
	}

	for _, table := range tables {
		var count int64
		db.Table("tables").Where("number = ?", table.Number).Count(&count)
		if count > 0 {
			continue
		}

		record := map[string]interface{}{
			"id":        uuid.New().String(),
			"number":    table.Number,
			"zone":      table.Zone,
			"status":    "FREE",
			"capacity":  table.Capacity,
			"is_active": true,
		}
		if err := db.Table("tables").Create(record).Error; err != nil {
			log.Fatalf("Failed to seed table %s: %v", table.Number, err)
		}
		log.Printf("  seeded table: %s (%s)", table.Number, table.Zone)
	}
}

func seedOperators(db *gorm.DB) {
	operators := []SeedOperator{
		{Name: "Deniz", Role: "ADMIN", PIN: "9999"},
		{Name: "Mara", Role: "MANAGER", PIN: "4321"},
		{Name: "Jonas", Role: "STAFF", PIN: "1111"},
		{Name: "Elif", Role: "STAFF", PIN: "2222"},
	}

	for _, operator := range operators {
		var count int64
		db.Table("operators").Where("name = ?", operator.Name).Count(&count)
		if count > 0 {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(operator.PIN), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash PIN for %s: %v", operator.Name, err)
		}

		record := map[string]interface{}{
			"id":        uuid.New().String(),
			"name":      operator.Name,
			"role":      operator.Role,
			"pin_hash":  string(hash),
			"is_active": true,
		}
		if err := db.Table("operators").Create(record).Error; err != nil {
			log.Fatalf("Failed to seed operator %s: %v", operator.Name, err)
		}
		log.Printf("  seeded operator: %s (%s)", operator.Name, operator.Role)
	}
}
