package registry

// Wire models for the public registry search endpoint. Field names follow
// the registry's own pt-BR vocabulary; mapping to the domain model happens
// in normalize.go

type searchRequest struct {
	QueryType  string `json:"tipoConsulta"` // "numero" | "parte"
	Value      string `json:"valor"`
	MaxResults int    `json:"maxResultados,omitempty"`
}

type searchResponse struct {
	Total     int           `json:"total"`
	Processos []wireProcess `json:"processos"`
}

type wireProcess struct {
	Numero          string         `json:"numeroProcesso"`
	Classe          string         `json:"classe"`
	Assuntos        []string       `json:"assuntos"`
	Tribunal        string         `json:"tribunal"`
	OrgaoJulgador   string         `json:"orgaoJulgador"`
	DataAjuizamento string         `json:"dataAjuizamento"`
	UltimaAtt       string         `json:"dataHoraUltimaAtualizacao"`
	Sistema         string         `json:"sistema"`
	Grau            string         `json:"grau"`
	ValorCausa      float64        `json:"valorCausa,omitempty"`
	Movimentos      []wireMovement `json:"movimentos"`
}

type wireMovement struct {
	DataHora    string `json:"dataHora"`
	Nome        string `json:"nome"`
	Complemento string `json:"complemento,omitempty"`
}
