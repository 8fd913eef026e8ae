// Package moysklad implements the inventory-system REST client used by the
// Create-In-Inventory and Stock-Isolation stages: article-keyed product
// lookup/creation, warehouse and global stock reads, and stock entry inserts.
package moysklad
