// Package core provides the transform and load logic for registry exports.
//
// This package is the heart of the ingester, containing all domain logic
// independent of how the archive is obtained or how the run is driven. It
// can be used by the pipeline, CLI tools, or tests without modification.
//
// # Architecture
//
//   - Entity Types: Registered via the registry, each maps an export file
//     prefix to a destination table, primary key and declared columns.
//   - Transformer: Decodes UTF-16 XML partitions into row batches, repairing
//     malformed fragments and normalizing values.
//   - SchemaManager: Creates tables once per run and adds columns on demand.
//   - Loader: Inserts batches, nulling rejected values and dropping rows whose
//     primary key already exists.
//   - Coordinator: Dispatches partitions to a bounded worker pool.
//   - SpatialIndexer: Adds PostGIS point geometries and GiST indexes.
//   - RunLog: Keeps one row per run in ingest_runs.
//
// # Entity Registry
//
// Entity types are registered at init time using [Register]:
//
//	core.Register(core.EntityType{
//	    Key:        "einheitenwind",
//	    Table:      "wind_extended",
//	    Category:   "wind",
//	    PrimaryKey: "EinheitMastrNummer",
//	    Columns: []core.ColumnSpec{
//	        {Name: "Inbetriebnahmedatum", Type: core.ColumnDate},
//	        {Name: "Bruttoleistung", Type: core.ColumnDouble},
//	    },
//	    Loadable: true,
//	})
//
// # Error Handling
//
// Every failure wraps one of the sentinel errors in errors.go; use errors.Is
// for policy decisions and [CodeOf] for logging.
package core
