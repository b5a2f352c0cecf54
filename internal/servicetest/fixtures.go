package servicetest

import (
	"github.com/google/uuid"

	"github.com/remoraproj/remora/field"
	"github.com/remoraproj/remora/proxy"
)

// Fixture schemas mirroring a small data catalog: datasets owned by
// organizations, carrying resources and tags. Building a fixture schema
// re-registers it under its type name, which is fine across tests.

// DatasetSchema builds and registers the Dataset fixture schema.
func DatasetSchema() *proxy.Schema {
	return proxy.NewSchema("Dataset").
		Field(proxy.NewNameID("name", proxy.Updatable())).
		Field(proxy.NewProperty("title", field.NewStr(), proxy.Updatable())).
		Field(proxy.NewProperty("notes", field.NewStr(), proxy.Updatable(), proxy.Optional())).
		Field(proxy.NewProperty("state", field.NewState())).
		Field(proxy.NewProperty("metadata_created", field.NewDate(), proxy.Optional())).
		Field(proxy.NewReference("organization", "Organization",
			proxy.Updatable(), proxy.TriggerSync(), proxy.CreateDefault("organization"))).
		Field(proxy.NewRefList("resources", "Resource", proxy.Optional())).
		Field(proxy.NewTagList("tags", proxy.Updatable(), proxy.Optional())).
		Field(proxy.NewExtras("extras", nil)).
		MustBuild()
}

// OrganizationSchema builds and registers the Organization fixture schema.
func OrganizationSchema() *proxy.Schema {
	return proxy.NewSchema("Organization").
		Field(proxy.NewNameID("name", proxy.Updatable())).
		Field(proxy.NewProperty("title", field.NewStr(), proxy.Updatable())).
		Field(proxy.NewProperty("state", field.NewState())).
		Field(proxy.NewRefList("datasets", "Dataset", proxy.Optional())).
		MustBuild()
}

// ResourceSchema builds and registers the Resource fixture schema.
func ResourceSchema() *proxy.Schema {
	return proxy.NewSchema("Resource").
		Field(proxy.NewProperty("url", field.NewStr(), proxy.Updatable())).
		Field(proxy.NewProperty("format", field.NewStr(), proxy.Updatable(), proxy.Optional())).
		Field(proxy.NewProperty("state", field.NewState())).
		Field(proxy.NewReference("dataset", "Dataset", proxy.Updatable(), proxy.TriggerSync())).
		MustBuild()
}

// DatasetEntity builds a wire entity accepted by DatasetSchema.
func DatasetEntity(id uuid.UUID, name string, org uuid.UUID) proxy.Entity {
	return proxy.Entity{
		"id":           id.String(),
		"name":         name,
		"title":        name,
		"state":        "active",
		"organization": org.String(),
		"resources":    []any{},
		"tags":         []any{},
	}
}

// OrganizationEntity builds a wire entity accepted by OrganizationSchema.
func OrganizationEntity(id uuid.UUID, name string, datasets ...uuid.UUID) proxy.Entity {
	ds := make([]any, len(datasets))
	for i, d := range datasets {
		ds[i] = d.String()
	}
	return proxy.Entity{
		"id":       id.String(),
		"name":     name,
		"title":    name,
		"state":    "active",
		"datasets": ds,
	}
}

// ResourceEntity builds a wire entity accepted by ResourceSchema.
func ResourceEntity(id uuid.UUID, url string, dataset uuid.UUID) proxy.Entity {
	return proxy.Entity{
		"id":      id.String(),
		"url":     url,
		"state":   "active",
		"dataset": dataset.String(),
	}
}
