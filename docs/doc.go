// Package docs provides generated OpenAPI documentation.
//
// Narrio API
//
//	@title			Narrio API
//	@version		1.0
//	@description	Document-to-audio conversion API for uploads, conversion jobs, and progress streams.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/narrio
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:5005
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/narrio/serve.go -o ./swagger --parseDependency --parseInternal
