package constants

const (
	AppStorefront        = "storefront"
	AppStorefrontApi     = "storefront-api"
	AppStorefrontMigrate = "storefront-migrate"
	AudienceUser         = "audience-user"
	IssuerUser           = "user-service"
	StorageName          = "storefront-cart-storage"
)
