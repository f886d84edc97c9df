// Package models contains GORM persistence models for the shop tables.
// Domain aggregates carry no ORM tags; every model here has ToDomain and
// FromDomain mappers that the repositories use.
//
//   - base.go: BaseModel and AggregateModel
//   - catalog.go: products
//   - identity.go: users (the cart is stored on the user row)
//   - trade.go: orders and order_items
package models
