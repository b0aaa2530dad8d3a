// Package tables registers all entity types with the core registry.
// Import this package to ensure all entity types are registered.
package tables

import "github.com/JonMunkholm/mastr-ingest/internal/core"

// This file exists to provide a single import point and the column sets
// shared by several entity types. Each category file uses init() to register
// its entity types.

// Casing differences between the export and the destination schema.
var mastrRenames = map[string]string{
	"LokationMaStRNummer":              "LokationMastrNummer",
	"NetzbetreiberMaStRNummer":         "NetzbetreiberMastrNummer",
	"VerknuepfteEinheitenMaStRNummern": "VerknuepfteEinheitenMastrNummern",
	"AnlagenbetreiberMaStRNummer":      "AnlagenbetreiberMastrNummer",
	"GenMaStRNummer":                   "GenMastrNummer",
}

func renames(extra map[string]string) map[string]string {
	out := make(map[string]string, len(mastrRenames)+len(extra))
	for k, v := range mastrRenames {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func text(name string) core.ColumnSpec { return core.ColumnSpec{Name: name, Type: core.ColumnText} }
func date(name string) core.ColumnSpec { return core.ColumnSpec{Name: name, Type: core.ColumnDate} }
func stamp(name string) core.ColumnSpec { return core.ColumnSpec{Name: name, Type: core.ColumnTimestamp} }
func double(name string) core.ColumnSpec { return core.ColumnSpec{Name: name, Type: core.ColumnDouble} }
func integer(name string) core.ColumnSpec { return core.ColumnSpec{Name: name, Type: core.ColumnInteger} }
func boolean(name string) core.ColumnSpec { return core.ColumnSpec{Name: name, Type: core.ColumnBool} }
func catalog(name string) core.ColumnSpec { return core.ColumnSpec{Name: name, Type: core.ColumnText, Catalog: true} }

func bundesland() core.ColumnSpec {
	return core.ColumnSpec{Name: "Bundesland", Type: core.ColumnText, Catalog: true, Normalizer: NormalizeBundesland}
}

// unitColumns are shared by all *_extended unit tables.
func unitColumns(extra ...core.ColumnSpec) []core.ColumnSpec {
	cols := []core.ColumnSpec{
		text("EinheitMastrNummer"),
		stamp("DatumLetzteAktualisierung"),
		text("LokationMastrNummer"),
		catalog("NetzbetreiberpruefungStatus"),
		date("NetzbetreiberpruefungDatum"),
		text("AnlagenbetreiberMastrNummer"),
		catalog("Land"),
		bundesland(),
		text("Landkreis"),
		text("Gemeinde"),
		text("Gemeindeschluessel"),
		text("Postleitzahl"),
		text("Ort"),
		text("Strasse"),
		text("Hausnummer"),
		double("Laengengrad"),
		double("Breitengrad"),
		date("Registrierungsdatum"),
		date("GeplantesInbetriebnahmedatum"),
		date("Inbetriebnahmedatum"),
		catalog("EinheitSystemstatus"),
		catalog("EinheitBetriebsstatus"),
		date("DatumBeginnVoruebergehendeStilllegung"),
		date("DatumEndgueltigeStilllegung"),
		date("DatumDesBetreiberwechsels"),
		text("NameStromerzeugungseinheit"),
		text("Weic"),
		text("Kraftwerksnummer"),
		catalog("Energietraeger"),
		double("Bruttoleistung"),
		double("Nettonennleistung"),
		boolean("FernsteuerbarkeitNb"),
		catalog("Einspeisungsart"),
		text("GenMastrNummer"),
	}
	return append(cols, extra...)
}

// eegColumns are shared by all *_eeg tables.
func eegColumns(extra ...core.ColumnSpec) []core.ColumnSpec {
	cols := []core.ColumnSpec{
		text("EegMastrNummer"),
		stamp("DatumLetzteAktualisierung"),
		date("EegInbetriebnahmedatum"),
		text("AnlagenkennzifferAnlagenregister"),
		text("AnlagenschluesselEeg"),
		boolean("PrototypAnlage"),
		boolean("PilotAnlage"),
		double("InstallierteLeistung"),
		catalog("AnlageBetriebsstatus"),
		text("VerknuepfteEinheitenMastrNummern"),
	}
	return append(cols, extra...)
}

// unit registers a *_extended entity type.
func unit(key, table, category string, extra ...core.ColumnSpec) core.EntityType {
	return core.EntityType{
		Key:        key,
		Table:      table,
		Category:   category,
		Renames:    renames(nil),
		PrimaryKey: "EinheitMastrNummer",
		Columns:    unitColumns(extra...),
		Loadable:   true,
	}
}

// eeg registers a *_eeg entity type.
func eeg(key, table, category string, extra ...core.ColumnSpec) core.EntityType {
	return core.EntityType{
		Key:        key,
		Table:      table,
		Category:   category,
		Renames:    renames(nil),
		PrimaryKey: "EegMastrNummer",
		Columns:    eegColumns(extra...),
		Loadable:   true,
	}
}
