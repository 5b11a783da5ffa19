// Package api provides the HTTP API for the publisher service.
//
//	@title						HotLabel Publisher API
//	@version					1.0
//	@description				Publisher registration, configuration and task access for the HotLabel platform.
//	@description				Publishers authenticate with the API key issued at registration.
//
//	@contact.name				HotLabel
//	@contact.url				https://github.com/hotlabel/publishers
//
//	@host						localhost:8080
//	@BasePath					/api/v1
//
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
//	@description				Publisher API key.
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Publisher API key as a bearer token. Format: "Bearer {api_key}"
//
//	@tag.name					publishers
//	@tag.description			Publisher registration and profile management
//
//	@tag.name					configuration
//	@tag.description			Widget configuration
//
//	@tag.name					tasks
//	@tag.description			Task access proxied to the task service
//
//	@tag.name					webhooks
//	@tag.description			Webhook subscriptions
//
//	@tag.name					statistics
//	@tag.description			Publisher activity statistics
//
//	@tag.name					system
//	@tag.description			System health and status
//
//	@tag.name					events
//	@tag.description			Real-time publisher event stream
package api
