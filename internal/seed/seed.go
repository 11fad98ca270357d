package seed

import (
	"bahri-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Target receives the demo catalog and account; backendtest.Server
// implements it.
type Target interface {
	AddProduct(p domain.Product) domain.Product
	AddUser(u domain.User, password string) domain.User
}

type productSeed struct {
	Slug        string
	Title       string
	Description string
	Price       string
	Stock       int
	Category    string
}

var categories = map[string]domain.Category{
	"cannes":      {ID: "cat-cannes", Name: "Cannes", Slug: "cannes"},
	"moulinets":   {ID: "cat-moulinets", Name: "Moulinets", Slug: "moulinets"},
	"leurres":     {ID: "cat-leurres", Name: "Leurres", Slug: "leurres"},
	"accessoires": {ID: "cat-accessoires", Name: "Accessoires", Slug: "accessoires"},
}

var products = []productSeed{
	{Slug: "canne-surfcasting-420", Title: "Canne surfcasting 4m20", Description: "Carbone, trois brins, 100-200 g", Price: "189.00", Stock: 6, Category: "cannes"},
	{Slug: "canne-spinning-240", Title: "Canne spinning 2m40", Description: "Action rapide, 10-40 g", Price: "95.50", Stock: 10, Category: "cannes"},
	{Slug: "moulinet-5000", Title: "Moulinet 5000", Description: "Six roulements, frein avant", Price: "74.90", Stock: 8, Category: "moulinets"},
	{Slug: "leurre-souple-12cm", Title: "Leurre souple 12 cm", Description: "Pack de cinq, coloris sardine", Price: "6.50", Stock: 120, Category: "leurres"},
	{Slug: "jig-40g", Title: "Jig métallique 40 g", Description: "Pour le loup et la bonite", Price: "4.20", Stock: 80, Category: "leurres"},
	{Slug: "tresse-150m", Title: "Tresse 8 brins 150 m", Description: "0,16 mm, vert mousse", Price: "22.00", Stock: 30, Category: "accessoires"},
	{Slug: "boite-a-leurres", Title: "Boîte à leurres", Description: "Deux plateaux, étanche", Price: "12.75", Stock: 25, Category: "accessoires"},
}

// DemoEmail and DemoPassword sign in the seeded account.
const (
	DemoEmail    = "demo@bahri.tn"
	DemoPassword = "pecheur2024"
)

// Apply loads the demo catalog and account into t and returns the products
// with their assigned ids.
func Apply(t Target) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		cat := categories[p.Category]
		out = append(out, t.AddProduct(domain.Product{
			Title:       p.Title,
			Slug:        p.Slug,
			Description: p.Description,
			Price:       decimal.RequireFromString(p.Price),
			Stock:       p.Stock,
			Category:    &cat,
		}))
	}
	t.AddUser(domain.User{
		FirstName:     "Yassine",
		LastName:      "Bahri",
		Email:         DemoEmail,
		Phone:         "+21698000000",
		Address:       "Port de pêche, quai 3",
		City:          "Kélibia",
		LoyaltyPoints: decimal.RequireFromString("15.00"),
	}, DemoPassword)
	return out
}
