// Package entitycore holds the contracts shared by entitycache stores, sources and test helpers:
// the Entity record, the Store and Source interfaces, driver names and the error taxonomy.
package entitycore
