package domain

import (
	"fmt"
	"time"
)

// Orgao identifies the regulating body whose classification scale applies.
type Orgao string

const (
	OrgaoARTESP Orgao = "ARTESP"
	OrgaoANTT   Orgao = "ANTT"
)

var (
	gradesARTESP = []string{"C0", "C1", "C2", "B2", "B3", "B4", "A4", "A5"}
	gradesANTT   = []string{"0", "1", "2", "3", "4", "5"}
)

// GradeScale returns the ordered classification scale for a regulating body.
// Unknown bodies fall back to the ARTESP scale, matching historical behavior.
func GradeScale(orgao Orgao) []string {
	if orgao == OrgaoANTT {
		return gradesANTT
	}
	return gradesARTESP
}

// Ficha is one structured inspection-sheet record as persisted in
// fichas_inspecao. Column names follow the operating company's vocabulary.
type Ficha struct {
	ID             int64      `json:"id"`
	Concessionaria string     `json:"concessionaria"`
	Rodovia        string     `json:"rodovia"`
	Obra           string     `json:"obra"`
	Sentido        string     `json:"sentido"`
	KM             string     `json:"km"`
	IC             string     `json:"ic"`
	UIR            string     `json:"uir"`
	UIE            string     `json:"uie"`
	DataInspecao   *time.Time `json:"data_inspecao,omitempty"`
	AnoInspecao    *int       `json:"ano_inspecao,omitempty"`
	Codigo         string     `json:"codigo"`
	CodigoARTESP   string     `json:"codigo_artesp"`
	TipoPav        string     `json:"tipo_pav"`
	OrgaoRegulador Orgao      `json:"orgao_regulador"`
	Estrutural     string     `json:"estrutural"`
	Funcional      string     `json:"funcional"`
	Durabilidade   string     `json:"durabilidade"`
	ArquivoS3      string     `json:"arquivo_s3"`
	DataUpload     time.Time  `json:"data_upload"`
}

// ValidateGrades checks the three classification grades against the scale of
// the record's regulating body. Empty grades are allowed (absent data); an
// out-of-scale grade is a validation error.
func (f *Ficha) ValidateGrades() error {
	if f.OrgaoRegulador == "" {
		return nil
	}
	scale := GradeScale(f.OrgaoRegulador)
	for _, grade := range []struct{ label, value string }{
		{"estrutural", f.Estrutural},
		{"funcional", f.Funcional},
		{"durabilidade", f.Durabilidade},
	} {
		if grade.value == "" {
			continue
		}
		if !inScale(scale, grade.value) {
			return WrapError(ErrInvalidInput, "validate grades",
				fmt.Errorf("%s grade %q is not in the %s scale", grade.label, grade.value, f.OrgaoRegulador))
		}
	}
	return nil
}

func inScale(scale []string, grade string) bool {
	for _, g := range scale {
		if g == grade {
			return true
		}
	}
	return false
}

// SemanticKeySet reports whether the record carries its natural identity:
// both codigo and the inspection date.
func (f *Ficha) SemanticKeySet() bool {
	return f.Codigo != "" && f.DataInspecao != nil
}

// SameInspection reports whether two records describe the same inspection
// event by the (codigo, data_inspecao) natural key.
func (f *Ficha) SameInspection(other *Ficha) bool {
	if !f.SemanticKeySet() || !other.SemanticKeySet() {
		return false
	}
	return f.Codigo == other.Codigo && f.DataInspecao.Equal(*other.DataInspecao)
}
