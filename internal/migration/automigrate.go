package migration

import (
	apikeydomain "github.com/usagegate/usagegate/internal/apikey/domain"
	customerdomain "github.com/usagegate/usagegate/internal/customer/domain"
	featuredomain "github.com/usagegate/usagegate/internal/feature/domain"
	orgdomain "github.com/usagegate/usagegate/internal/organization/domain"
	pricedomain "github.com/usagegate/usagegate/internal/price/domain"
	productdomain "github.com/usagegate/usagegate/internal/product/domain"
	"gorm.io/gorm"
)

// AutoMigrate creates the schema from the gorm models. Used on sqlite
// deployments, where the embedded SQL migrations (postgres dialect) do
// not apply.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&orgdomain.Organization{},
		&featuredomain.Feature{},
		&productdomain.Product{},
		&productdomain.ProductEntitlement{},
		&pricedomain.Price{},
		&customerdomain.Customer{},
		&customerdomain.Entity{},
		&customerdomain.CustomerProduct{},
		&customerdomain.CustomerEntitlement{},
		&apikeydomain.APIKey{},
	)
}
