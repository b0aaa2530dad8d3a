package tables

import "github.com/JonMunkholm/mastr-ingest/internal/core"

func init() {
	registerStorage()
	registerGas()
}

func registerStorage() {
	core.Register(unit("einheitenstromspeicher", "storage_extended", "storage",
		catalog("Batterietechnologie"),
		catalog("Technologie"),
		catalog("Pumpspeichertechnologie"),
		catalog("AcDcKoppelung"),
		double("NutzbareSpeicherkapazitaet"),
		double("PumpbetriebLeistungsaufnahme"),
		boolean("PumpbetriebKontinuierlichRegelbar"),
		boolean("Notstromaggregat"),
		text("SpeMastrNummer"),
		text("EegMastrNummer"),
	))
	core.Register(eeg("anlageneegspeicher", "storage_eeg", "storage"))
	core.Register(core.EntityType{
		Key:        "anlagenstromspeicher",
		Table:      "storage_units",
		Category:   "storage",
		Renames:    renames(nil),
		PrimaryKey: "MastrNummer",
		Columns: []core.ColumnSpec{
			text("MastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			double("NutzbareSpeicherkapazitaet"),
			text("VerknuepfteEinheitenMastrNummern"),
			text("AnlageBetriebsstatus"),
		},
		Loadable: true,
	})
}

func registerGas() {
	core.Register(core.EntityType{
		Key:        "einheitengaserzeuger",
		Table:      "gas_producer",
		Category:   "gas",
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
			catalog("Technologie"),
			double("Erzeugungsleistung"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "einheitengasverbraucher",
		Table:      "gas_consumer",
		Category:   "gas",
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
			double("MaximaleGasbezugsleistung"),
			boolean("GasbezugsleistungVerstromung"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "einheitengasspeicher",
		Table:      "gas_storage_extended",
		Category:   "gas",
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
			double("Speichervolumen"),
			text("SpeicherMastrNummer"),
		},
		Loadable: true,
	})
	core.Register(core.EntityType{
		Key:        "anlagengasspeicher",
		Table:      "gas_storage",
		Category:   "gas",
		Renames:    renames(nil),
		PrimaryKey: "MastrNummer",
		Columns: []core.ColumnSpec{
			text("MastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			text("Speichername"),
			double("Speicherart"),
			text("VerknuepfteEinheitenMastrNummern"),
		},
		Loadable: true,
	})
}
