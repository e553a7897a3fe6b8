package ollama

import (
	"fmt"
	"strings"

	"github.com/engevia/fichas-inspecao/internal/core/domain"
)

func buildAnswerPrompt(question string, segments []domain.RetrievedSegment) string {
	var contextBuilder strings.Builder
	for idx, seg := range segments {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] fonte=%s tipo=%s score=%.3f\n%s\n\n",
			idx+1,
			seg.SourceID,
			seg.Kind,
			seg.Score,
			seg.Text,
		))
	}

	return fmt.Sprintf(`Você é um assistente técnico de inspeção de obras rodoviárias.
Responda à pergunta usando somente o contexto abaixo.
Se o contexto não for suficiente para responder, diga isso diretamente.
Ao final, cite as fontes utilizadas pelo identificador entre colchetes.

Pergunta:
%s

Contexto:
%s
`, question, contextBuilder.String())
}
