package tables

import "github.com/JonMunkholm/mastr-ingest/internal/core"

func init() {
	registerWind()
	registerSolar()
	registerBiomass()
	registerHydro()
	registerGsgk()
	registerCombustion()
	registerNuclear()
}

func registerWind() {
	core.Register(unit("einheitenwind", "wind_extended", "wind",
		catalog("Lage"),
		catalog("Seelage"),
		catalog("ClusterOstsee"),
		catalog("ClusterNordsee"),
		catalog("Hersteller"),
		text("Typenbezeichnung"),
		double("Nabenhoehe"),
		double("Rotordurchmesser"),
		boolean("Rotorblattenteisungssystem"),
		boolean("AuflageAbschaltungLeistungsbegrenzung"),
		double("Wassertiefe"),
		double("Kuestenentfernung"),
		text("EegMastrNummer"),
	))
	core.Register(eeg("anlageneegwind", "wind_eeg", "wind",
		boolean("AuflageAbschaltungSchallimmissionsschutzNachts"),
		boolean("AuflageAbschaltungSchallimmissionsschutzTagsueber"),
		boolean("AuflageAbschaltungSchattenwurf"),
		boolean("AuflageAbschaltungTierschutz"),
		boolean("AuflageAbschaltungEiswurf"),
		text("Zuschlagsnummer"),
	))
}

func registerSolar() {
	core.Register(unit("einheitensolar", "solar_extended", "solar",
		catalog("Lage"),
		catalog("ArtDerSolaranlage"),
		catalog("Leistungsbegrenzung"),
		catalog("Hauptausrichtung"),
		catalog("HauptausrichtungNeigungswinkel"),
		catalog("Nebenausrichtung"),
		catalog("Nutzungsbereich"),
		integer("AnzahlModule"),
		double("ZugeordneteWirkleistungWechselrichter"),
		boolean("EinheitlicheAusrichtungUndNeigungswinkel"),
		boolean("InAnspruchGenommeneAckerflaeche"),
		text("EegMastrNummer"),
	))
	core.Register(eeg("anlageneegsolar", "solar_eeg", "solar",
		text("ZugeordneteGebotsmenge"),
		text("Zuschlagsnummer"),
	))
}

func registerBiomass() {
	core.Register(unit("einheitenbiomasse", "biomass_extended", "biomass",
		catalog("Hauptbrennstoff"),
		catalog("Biomasseart"),
		catalog("Technologie"),
		text("EegMastrNummer"),
		text("KwkMastrNummer"),
	))
	core.Register(eeg("anlageneegbiomasse", "biomass_eeg", "biomass",
		boolean("AusschliesslicheVerwendungBiomasse"),
		text("Zuschlagsnummer"),
		boolean("BiogasInanspruchnahmeFlexiPraemie"),
		date("BiogasDatumInanspruchnahmeFlexiPraemie"),
		double("BiogasHoechstbemessungsleistung"),
		date("BiomethanErstmaligerEinsatz"),
	))
}

func registerHydro() {
	core.Register(unit("einheitenwasser", "hydro_extended", "hydro",
		catalog("ArtDerWasserkraftanlage"),
		catalog("ArtDesZuflusses"),
		boolean("MinderungStromerzeugung"),
		boolean("BestandteilGrenzkraftwerk"),
		double("NettonennleistungDeutschland"),
		text("EegMastrNummer"),
	))
	core.Register(eeg("anlageneegwasser", "hydro_eeg", "hydro",
		text("Ertuechtigung"),
		date("DatumErtuechtigung"),
	))
}

func registerGsgk() {
	core.Register(unit("einheitengeothermiegrubengasdruckentspannung", "gsgk_extended", "gsgk",
		catalog("Technologie"),
		text("EegMastrNummer"),
		text("KwkMastrNummer"),
	))
	core.Register(eeg("anlageneeggeothermiegrubengasdruckentspannung", "gsgk_eeg", "gsgk"))
}

func registerCombustion() {
	core.Register(unit("einheitenverbrennung", "combustion_extended", "combustion",
		catalog("Hauptbrennstoff"),
		catalog("WeitererHauptbrennstoff"),
		catalog("WeitereBrennstoffe"),
		catalog("Technologie"),
		text("NameKraftwerk"),
		text("NameKraftwerksblock"),
		date("DatumBaubeginn"),
		boolean("AnzeigeEinerStilllegung"),
		text("KwkMastrNummer"),
		boolean("AusschliesslicheVerwendungImKombibetrieb"),
	))
	core.Register(core.EntityType{
		Key:        "anlagenkwk",
		Table:      "kwk",
		Category:   "combustion",
		Renames:    renames(nil),
		PrimaryKey: "KwkMastrNummer",
		Columns: []core.ColumnSpec{
			text("KwkMastrNummer"),
			stamp("DatumLetzteAktualisierung"),
			date("Zulassungsdatum"),
			text("AusschreibungZuschlag"),
			double("ThermischeNutzleistung"),
			double("ElektrischeKwkLeistung"),
			date("Inbetriebnahmedatum"),
			catalog("AnlageBetriebsstatus"),
			text("VerknuepfteEinheitenMastrNummern"),
		},
		Loadable: true,
	})
}

func registerNuclear() {
	core.Register(unit("einheitenkernkraft", "nuclear_extended", "nuclear",
		text("NameKraftwerk"),
		text("NameKraftwerksblock"),
		catalog("Technologie"),
	))
}
