package registry

// Default returns the DATAR persona roster for the Estructura Ecológica
// Principal de Bogotá. Ids are the stable wire identifiers used in routing
// hints and per-agent endpoints.
func Default() *Registry {
	r := New()
	for _, d := range []Descriptor{
		{
			ID:          "gente_montana",
			DisplayName: "Gente Montaña",
			Description: "Especialista en los Cerros Orientales y sus dinámicas territoriales",
			Color:       "#8d6e63",
			Emoji:       "🏔️",
		},
		{
			ID:          "gente_pasto",
			DisplayName: "Gente Pasto",
			Description: "Especialista en vegetación, pastizales y coberturas verdes urbanas",
			Color:       "#7cb342",
			Emoji:       "🌿",
		},
		{
			ID:          "gente_intuitiva",
			DisplayName: "Gente Intuitiva",
			Description: "Genera visualizaciones emocionales del territorio",
			Color:       "#ab47bc",
			Emoji:       "📔",
		},
		{
			ID:          "gente_interpretativa",
			DisplayName: "Gente Interpretativa",
			Description: "Pipeline interpretativo de datos ambientales",
			Color:       "#26a69a",
			Emoji:       "🥒",
		},
		{
			ID:          "gente_bosque",
			DisplayName: "Gente Bosque",
			Description: "Ecosistemas forestales y conectividad ecológica",
			Color:       "#2e7d32",
			Emoji:       "🌲",
		},
		{
			ID:          "gente_sonora",
			DisplayName: "Gente Sonora",
			Description: "Representaciones sonoras biocéntricas del paisaje",
			Color:       "#f9a825",
			Emoji:       "🎵",
		},
		{
			ID:          "gente_horaculo",
			DisplayName: "Gente Horáculo",
			Description: "Oráculo ambiental de la Estructura Ecológica Principal",
			Color:       "#5c6bc0",
			Emoji:       "🔮",
		},
	} {
		r.Register(d)
	}
	return r
}
