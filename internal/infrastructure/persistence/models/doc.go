// Package models contains GORM persistence models for invoices and merchants.
// Domain entities carry no ORM tags; each model converts to and from its entity
// with ToDomain and FromDomain.
package models
