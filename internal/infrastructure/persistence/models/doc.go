// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel and the model registry used by AutoMigrate
// - report.go: uploaded sales reports and their aggregate totals
// - sales_record.go: analyzed sale rows, children of a report
package models
