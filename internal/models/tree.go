// Package models defines the parsed template tree structures.
//
// Field names keep the Spanish wire format of the persisted JSON trees,
// which downstream document tooling consumes as-is.
package models

// Descripcion wraps a single descriptive attribute of a tree node.
type Descripcion struct {
	Descripcion string `json:"descripcion"`
}

// Nodo is a third-level leaf record (indirect effect or indirect end).
type Nodo struct {
	ID          string `json:"id"`
	Descripcion string `json:"descripcion"`
}

// CausaIndirecta is a second-level node of the causes tree.
type CausaIndirecta struct {
	ID                string `json:"id"`
	Descripcion       string `json:"descripcion"`
	EfectosIndirectos []Nodo `json:"efectos_indirectos"`
}

// Causa is a root node of the causes tree.
type Causa struct {
	ID               string           `json:"id"`
	Descripcion      string           `json:"descripcion"`
	EfectoDirecto    Descripcion      `json:"efecto_directo"`
	CausasIndirectas []CausaIndirecta `json:"causas_indirectas"`
}

// CausaTree is the parsed cause/effect template.
type CausaTree struct {
	Tipo  string  `json:"tipo"`
	Items []Causa `json:"items"`
}

// MedioIndirecto is a second-level node of the objectives tree.
type MedioIndirecto struct {
	ID              string `json:"id"`
	Descripcion     string `json:"descripcion"`
	FinesIndirectos []Nodo `json:"fines_indirectos"`
}

// Objetivo is a root node of the objectives tree.
type Objetivo struct {
	ID               string           `json:"id"`
	Descripcion      string           `json:"descripcion"`
	MedioDirecto     Descripcion      `json:"medio_directo"`
	FinDirecto       Descripcion      `json:"fin_directo"`
	MediosIndirectos []MedioIndirecto `json:"medios_indirectos"`
}

// ObjetivoTree is the parsed objective/means/ends template.
type ObjetivoTree struct {
	Tipo  string     `json:"tipo"`
	Items []Objetivo `json:"items"`
}

// TreePair groups the two tree shapes parsed from one combined-template sheet.
type TreePair struct {
	Causas    *CausaTree    `json:"causas,omitempty"`
	Objetivos *ObjetivoTree `json:"objetivos,omitempty"`
}
