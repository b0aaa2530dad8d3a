package tables

import "github.com/JonMunkholm/mastr-ingest/internal/core"

func init() {
	registerMarket()
	registerGrid()
	registerRegistryMaintenance()
	registerLookups()
}

func registerMarket() {
	core.Register(core.EntityType{
		Key:        "marktakteure",
		Table:      "market_actors",
		Category:   "market",
		Renames:    renames(nil),
		PrimaryKey: "MastrNummer",
		Columns: []core.ColumnSpec{
			text("MastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			catalog("Personenart"),
			text("Firmenname"),
			catalog("Rechtsform"),
			catalog("Land"),
			bundesland(),
			text("Postleitzahl"),
			text("Ort"),
			date("Registrierungsdatum"),
			catalog("Taetigkeitsstatus"),
			date("Taetigkeitsbeginn"),
			date("Taetigkeitsende"),
			catalog("HauptwirtdschaftszweigAbteilung"),
			text("Registernummer"),
			text("Umsatzsteueridentifikationsnummer"),
			boolean("Kmu"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "marktrollen",
		Table:      "market_roles",
		Category:   "market",
		Renames:    renames(nil),
		PrimaryKey: "MastrNummer",
		Columns: []core.ColumnSpec{
			text("MastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			text("MarktakteurMastrNummer"),
			catalog("Marktrolle"),
			text("BundesnetzagenturBetriebsnummer"),
			text("Marktpartneridentifikationsnummer"),
			text("KontaktdatenMarktrolle"),
		},
		Loadable: true,
	})
}

func registerGrid() {
	core.Register(core.EntityType{
		Key:        "netze",
		Table:      "grids",
		Category:   "grid",
		Renames:    renames(nil),
		PrimaryKey: "MastrNummer",
		Columns: []core.ColumnSpec{
			text("MastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			text("Bezeichnung"),
			catalog("Marktgebiet"),
			catalog("Sparte"),
			boolean("KundenAngeschlossen"),
			boolean("GeschlossenesVerteilnetz"),
			text("Bilanzierungsgebiete"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "netzanschlusspunkte",
		Table:      "grid_connections",
		Category:   "grid",
		Renames:    renames(nil),
		PrimaryKey: "NetzanschlusspunktMastrNummer",
		Columns: []core.ColumnSpec{
			text("NetzanschlusspunktMastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			text("NetzanschlusspunktBezeichnung"),
			text("LetzteAenderungsdatum"),
			text("LokationMastrNummer"),
			catalog("Lokationtyp"),
			double("MaximaleEinspeiseleistung"),
			double("MaximaleAusspeiseleistung"),
			catalog("Spannungsebene"),
			text("NetzMastrNummer"),
			boolean("Nettoengpassleistung"),
			text("Netzanschlusskapazitaet"),
			boolean("Gasqualitaet"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "bilanzierungsgebiete",
		Table:      "balancing_area",
		Category:   "balancing_area",
		Renames:    renames(nil),
		PrimaryKey: "Id",
		Columns: []core.ColumnSpec{
			integer("Id"),
			text("Yeic"),
			text("RegelzoneNetzanschlusspunkt"),
			text("BilanzierungsgebietNetzanschlusspunkt"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "einheitenstromverbraucher",
		Table:      "electricity_consumer",
		Category:   "electricity_consumer",
		Renames:    renames(nil),
		PrimaryKey: "EinheitMastrNummer",
		Columns: []core.ColumnSpec{
			text("EinheitMastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			catalog("Land"),
			bundesland(),
			text("Gemeindeschluessel"),
			text("Postleitzahl"),
			double("Laengengrad"),
			double("Breitengrad"),
			date("Inbetriebnahmedatum"),
			catalog("EinheitBetriebsstatus"),
			boolean("AnzahlStromverbrauchseinheitenGroesser50Mw"),
			double("AnteiligeNutzungsleistung"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "lokationen",
		Table:      "locations_extended",
		Category:   "location",
		Renames:    renames(nil),
		PrimaryKey: "MastrNummer",
		Columns: []core.ColumnSpec{
			text("MastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			text("NameDerTechnischenLokation"),
			text("VerknuepfteEinheiten"),
			text("Netzanschlusspunkte"),
			catalog("Lokationtyp"),
		},
		Loadable: true,
	})
}

func registerRegistryMaintenance() {
	core.Register(core.EntityType{
		Key:        "geloeschteunddeaktivierteeinheiten",
		Table:      "deleted_units",
		Category:   "deleted_units",
		Renames:    renames(nil),
		PrimaryKey: "EinheitMastrNummer",
		Columns: []core.ColumnSpec{
			text("EinheitMastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			catalog("Einheittyp"),
			catalog("EinheitSystemstatus"),
			catalog("EinheitBetriebsstatus"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "geloeschteunddeaktiviertemarktakteure",
		Table:      "deleted_market_actors",
		Category:   "deleted_market_actors",
		Renames:    renames(nil),
		PrimaryKey: "MarktakteurMastrNummer",
		Columns: []core.ColumnSpec{
			text("MarktakteurMastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			catalog("MarktakteurStatus"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "ertuechtigungen",
		Table:      "retrofit_units",
		Category:   "retrofit_units",
		Renames:    renames(nil),
		PrimaryKey: "Id",
		Columns: []core.ColumnSpec{
			integer("Id"),
			text("EegMastrNummer"),
			catalog("Leistungserhoehung"),
			date("WiederinbetriebnahmeDatum"),
			stamp("DatumLetzteAktualisierung"),
			catalog("Ertuechtigungsart"),
			boolean("ErtuechtigungIstZulassungspflichtig"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "einheitengenehmigung",
		Table:      "permit",
		Category:   "permit",
		Renames:    renames(nil),
		PrimaryKey: "GenMastrNummer",
		Columns: []core.ColumnSpec{
			text("GenMastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			catalog("Art"),
			date("Datum"),
			text("Behoerde"),
			text("Aktenzeichen"),
			date("Frist"),
			boolean("WasserrechtsNummer"),
			date("WasserrechtAblaufdatum"),
			date("Meldedatum"),
			text("VerknuepfteEinheiten"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "einheitenaenderungnetzbetreiberzuordnungen",
		Table:      "changed_dso_assignment",
		Category:   "changed_dso_assignment",
		Renames:    renames(nil),
		PrimaryKey: "EinheitMastrNummer",
		Columns: []core.ColumnSpec{
			text("EinheitMastrNummer"),
			text("LokationMastrNummer"),
			text("NetzanschlusspunktMastrNummer"),
			text("NetzbetreiberMastrNummerNeu"),
			text("NetzbetreiberMastrNummerAlt"),
			catalog("ArtDerAenderung"),
			stamp("RegistrierungsdatumNetzbetreiberzuordnungsaenderung"),
			date("Netzbetreiberzuordnungsaenderungsdatum"),
		},
		Loadable: true,
	})
}

// registerLookups registers entity types that appear in the archive but are
// not loaded as tables. Katalogwerte feeds cleansing instead.
func registerLookups() {
	for _, key := range []string{"katalogwerte", "katalogkategorien", "einheitentypen"} {
		core.Register(core.EntityType{Key: key})
	}
}
