// Package model holds the entity types shared across Docbox's tenant
// store, processing pipeline, and search engine.
package model

// Tenant maps an (env, id) pair to the resource handles a request needs:
// database, bucket, search index, and (optionally) an event queue.
// Provisioning happens out of band; the core only reads these records.
type Tenant struct {
	Env           string
	ID            string
	DBName        string
	S3BucketName  string
	IndexName     string
	EventQueueURL *string
}

// Key returns the identity used to look a Tenant up in the registry cache.
func (t Tenant) Key() string {
	return t.Env + "/" + t.ID
}
