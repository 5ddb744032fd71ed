package retrieval

import (
	"fmt"
	"strings"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/remote"
)

const (
	localQualityWithResults = 0.8
	localQualityEmpty       = 0.4
	fallbackQuality         = 0.3
)

// synthesizeLocal builds an extractive answer from the top ranked
// results. Each excerpt carries a confidence tag derived from its
// similarity so the conversation layer can hedge appropriately.
func (r *Router) synthesizeLocal(req Request, results []model.RankedResult) *model.IntegratedResponse {
	if len(results) > localTopN {
		results = results[:localTopN]
	}
	if len(results) == 0 {
		rsp := r.fallbackResponse(req, "busca local sem resultados")
		rsp.Strategy = model.StrategyLocal
		rsp.KnowledgeSource = model.SourceLocal
		rsp.QualityScore = localQualityEmpty
		return rsp
	}

	var (
		b       strings.Builder
		sources []string
		seen    = make(map[string]struct{})
		chunks  = make([]model.ContextChunk, 0, len(results))
	)
	b.WriteString(localPreamble(req.Persona))
	for i, result := range results {
		text := result.Document.Content
		if result.Chunk != nil {
			text = result.Chunk.Content
		}
		fmt.Fprintf(&b, "\n\n%d. [%s] %s\n%s", i+1, confidenceTag(result.Scores.Semantic), result.Document.Title, text)
		if _, ok := seen[result.Document.Source]; !ok && result.Document.Source != "" {
			seen[result.Document.Source] = struct{}{}
			sources = append(sources, result.Document.Source)
		}
		chunks = append(chunks, model.ContextChunk{
			DocumentID: result.Document.ID,
			Title:      result.Document.Title,
			Content:    text,
			Similarity: result.Scores.Semantic,
			Confidence: confidenceTag(result.Scores.Semantic),
			Source:     result.Document.Source,
		})
	}
	return &model.IntegratedResponse{
		Answer:          b.String(),
		Strategy:        model.StrategyLocal,
		KnowledgeSource: model.SourceLocal,
		Sources:         sources,
		ContextChunks:   chunks,
		QualityScore:    localQualityWithResults,
		ProcessingSteps: []string{"busca local", fmt.Sprintf("%d trechos selecionados", len(chunks))},
	}
}

// merge appends confident local excerpts to the remote answer as a
// complementary section. Only local chunks at or above the confidence
// floor make it in, the remote answer itself is never rewritten.
func (r *Router) merge(req Request, remoteRes *remote.QueryResult, localRes []model.RankedResult) *model.IntegratedResponse {
	rsp := &model.IntegratedResponse{
		Answer:          remoteRes.Answer,
		Strategy:        model.StrategyHybrid,
		KnowledgeSource: model.SourceRemote,
		Sources:         remoteRes.Sources,
		ContextChunks:   remoteRes.ContextChunks,
		QualityScore:    remoteRes.QualityScore,
		ProcessingSteps: []string{"consulta remota", "busca local"},
	}

	var extra []model.RankedResult
	for _, result := range localRes {
		if result.Scores.Semantic >= mergeConfidenceFloor {
			extra = append(extra, result)
		}
	}
	if len(extra) == 0 {
		return rsp
	}
	if len(extra) > localTopN {
		extra = extra[:localTopN]
	}

	var b strings.Builder
	b.WriteString(rsp.Answer)
	b.WriteString("\n\nInformações complementares da base local:")
	for _, result := range extra {
		text := result.Document.Content
		if result.Chunk != nil {
			text = result.Chunk.Content
		}
		fmt.Fprintf(&b, "\n- %s: %s", result.Document.Title, text)
		rsp.ContextChunks = append(rsp.ContextChunks, model.ContextChunk{
			DocumentID: result.Document.ID,
			Title:      result.Document.Title,
			Content:    text,
			Similarity: result.Scores.Semantic,
			Confidence: confidenceTag(result.Scores.Semantic),
			Source:     result.Document.Source,
		})
		found := false
		for _, source := range rsp.Sources {
			if source == result.Document.Source {
				found = true
				break
			}
		}
		if !found && result.Document.Source != "" {
			rsp.Sources = append(rsp.Sources, result.Document.Source)
		}
	}
	rsp.Answer = b.String()
	rsp.KnowledgeSource = model.SourceMerged
	rsp.ProcessingSteps = append(rsp.ProcessingSteps, "mesclagem de fontes")
	return rsp
}

func confidenceTag(similarity float64) string {
	switch {
	case similarity >= 0.8:
		return "alta confiança"
	case similarity >= 0.6:
		return "média confiança"
	default:
		return "baixa confiança"
	}
}

func localPreamble(persona string) string {
	if persona == PersonaDrGasnelio {
		return "Com base na literatura técnica disponível localmente, seguem os trechos mais relevantes:"
	}
	return "Encontrei estas informações na nossa base local que podem te ajudar:"
}

// fallbackResponse is the last resort: a static, persona flavored
// answer that admits the limitation and points to a professional.
func (r *Router) fallbackResponse(req Request, reason string) *model.IntegratedResponse {
	var answer string
	if req.Persona == PersonaDrGasnelio {
		answer = "No momento não há base de conhecimento disponível para fundamentar uma resposta técnica. " +
			"Recomendo consultar o PCDT Hanseníase vigente ou o serviço de referência para informações sobre o esquema PQT-U."
	} else {
		answer = "Desculpe, não consegui acessar as informações agora. " +
			"Para dúvidas sobre o tratamento da hanseníase, procure a unidade de saúde onde você retira a medicação, tá bom?"
	}
	return &model.IntegratedResponse{
		Answer:          answer,
		Strategy:        model.StrategyFallback,
		KnowledgeSource: model.SourceStatic,
		QualityScore:    fallbackQuality,
		ProcessingSteps: []string{"resposta estática", reason},
	}
}

// postProcess attaches persona and safety caveats. Dosage and
// contraindication content always gets the professional-consultation
// caveat regardless of how the answer was produced.
func (r *Router) postProcess(rsp *model.IntegratedResponse, req Request, analysis model.QueryAnalysis) {
	rsp.Persona = req.Persona
	for _, category := range analysis.Categories {
		switch category {
		case model.CategoryDosage:
			rsp.Caveats = appendUnique(rsp.Caveats,
				"Doses devem ser confirmadas com um profissional de saúde antes de qualquer ajuste.")
		case model.CategoryContraindication:
			rsp.Caveats = appendUnique(rsp.Caveats,
				"Contraindicações exigem avaliação individual, procure orientação médica.")
		case model.CategoryInteraction:
			rsp.Caveats = appendUnique(rsp.Caveats,
				"Informe sempre todos os medicamentos em uso ao profissional que acompanha o tratamento.")
		}
	}
	for _, chunk := range rsp.ContextChunks {
		if chunk.Similarity > 0 && chunk.Similarity < 0.6 {
			rsp.Caveats = appendUnique(rsp.Caveats,
				"Parte das fontes tem baixa similaridade com a pergunta, a resposta pode estar incompleta.")
			break
		}
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
