package knowledge

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/careline/medrag/internal/model"
)

// SeedDocuments is the curated base corpus about hanseníase treatment
// (PQT-U scheme). It is loaded at startup so the engine can answer
// offline even before any external corpus source is configured.
func SeedDocuments() []*model.Document {
	updated := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []*model.Document{
		{
			ID:          "rifampicina-dosagem",
			Title:       "Rifampicina — Dosagem e Administração",
			Category:    model.CategoryDosage,
			Priority:    0.95,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"rifampicina", "dose", "PQT-U"},
			Content:     "A rifampicina é administrada na dose de 600 mg uma vez por mês, " +
				"em dose supervisionada na unidade de saúde, para adultos com peso acima de 50 kg. " +
				"Para crianças e pacientes com menos de 30 kg utiliza-se 10 mg/kg de peso corporal. " +
				"A dose mensal supervisionada deve ser tomada em jejum, preferencialmente uma hora antes da refeição. " +
				"A rifampicina faz parte do esquema PQT-U e nunca deve ser usada isoladamente no tratamento da hanseníase.",
		},
		{
			ID:          "clofazimina-dosagem",
			Title:       "Clofazimina — Dosagem e Administração",
			Category:    model.CategoryDosage,
			Priority:    0.9,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"clofazimina", "dose", "PQT-U"},
			Content:     "A clofazimina é administrada na dose de 300 mg uma vez por mês, supervisionada, " +
				"combinada com 50 mg em dose diária autoadministrada para adultos. " +
				"Em crianças a dose mensal é de 6 mg/kg e a dose diária de 1 mg/kg em dias alternados. " +
				"A clofazimina deve ser tomada junto com alimentos para melhorar a absorção e reduzir desconforto gástrico.",
		},
		{
			ID:          "dapsona-dosagem",
			Title:       "Dapsona — Dosagem e Administração",
			Category:    model.CategoryDosage,
			Priority:    0.9,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"dapsona", "dose", "PQT-U"},
			Content:     "A dapsona é administrada na dose de 100 mg em dose diária autoadministrada para adultos, " +
				"combinada com a dose mensal supervisionada do esquema PQT-U. " +
				"Para crianças a dose é de 2 mg/kg por dia. " +
				"A dapsona deve ser mantida durante todo o esquema, salvo em caso de reação adversa grave.",
		},
		{
			ID:          "rifampicina-contraindicacoes",
			Title:       "Rifampicina — Contraindicações",
			Category:    model.CategoryContraindication,
			Priority:    0.95,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"rifampicina", "contraindicação"},
			Content:     "A rifampicina é contraindicada em pacientes com hipersensibilidade conhecida às rifamicinas " +
				"e em hepatopatia grave descompensada. " +
				"Durante a gravidez o esquema PQT-U é considerado seguro e não deve ser interrompido, " +
				"mas toda gestante deve ser acompanhada em serviço de referência. " +
				"Pacientes com icterícia devem ter o tratamento avaliado por especialista antes de continuar.",
		},
		{
			ID:          "dapsona-contraindicacoes",
			Title:       "Dapsona — Contraindicações e Precauções na Gravidez",
			Category:    model.CategoryContraindication,
			Priority:    0.9,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"dapsona", "contraindicação", "gravidez"},
			Content:     "A dapsona é contraindicada em pacientes com deficiência grave de G6PD, " +
				"anemia grave e hipersensibilidade às sulfonas. " +
				"Na gravidez a dapsona pode ser mantida com suplementação de ácido fólico, " +
				"mas gestantes e lactantes não devem iniciar o tratamento sem avaliação médica. " +
				"Evitar o uso concomitante com outros fármacos oxidantes.",
		},
		{
			ID:          "rifampicina-efeitos",
			Title:       "Rifampicina — Efeitos Colaterais",
			Category:    model.CategorySideEffect,
			Priority:    0.8,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"rifampicina", "efeito colateral"},
			Content:     "A rifampicina pode causar coloração alaranjada da urina, suor e lágrimas, " +
				"o que é esperado e inofensivo. " +
				"Efeitos colaterais menos comuns incluem náusea, vômito e dor abdominal. " +
				"Reações graves como icterícia, púrpura ou síndrome gripal exigem suspensão imediata " +
				"e encaminhamento ao serviço de referência.",
		},
		{
			ID:          "clofazimina-efeitos",
			Title:       "Clofazimina — Efeitos Colaterais",
			Category:    model.CategorySideEffect,
			Priority:    0.75,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"clofazimina", "efeito colateral"},
			Content:     "A clofazimina causa hiperpigmentação da pele em praticamente todos os pacientes, " +
				"com coloração que varia do avermelhado ao castanho escuro e regride lentamente após o término. " +
				"Ressecamento da pele e ictiose são comuns e devem ser manejados com hidratação. " +
				"Dor abdominal persistente merece avaliação por possível depósito do fármaco.",
		},
		{
			ID:          "rifampicina-interacoes",
			Title:       "Rifampicina — Interações Medicamentosas",
			Category:    model.CategoryInteraction,
			Priority:    0.85,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"rifampicina", "interação", "anticoncepcional"},
			Content:     "A rifampicina é um potente indutor enzimático e reduz a eficácia de anticoncepcionais orais, " +
				"devendo a paciente ser orientada a usar método contraceptivo adicional. " +
				"Também reduz níveis de corticosteroides, anticoagulantes orais, hipoglicemiantes e antirretrovirais. " +
				"Pacientes em uso de varfarina precisam de monitorização do INR durante o tratamento.",
		},
		{
			ID:          "esquema-pqtu",
			Title:       "Esquema PQT-U — Protocolo de Tratamento",
			Category:    model.CategoryProtocol,
			Priority:    0.9,
			Source:      "PCDT Hanseníase 2022",
			LastUpdated: updated,
			Tags:        []string{"PQT-U", "protocolo", "esquema"},
			Content:     "O esquema PQT-U combina rifampicina, clofazimina e dapsona para todos os casos de hanseníase. " +
				"Casos paucibacilares são tratados por 6 meses e casos multibacilares por 12 meses. " +
				"A dose mensal é supervisionada na unidade de saúde e as doses diárias são autoadministradas. " +
				"Faltas à dose supervisionada devem ser repostas o quanto antes para não comprometer o esquema.",
		},
		{
			ID:          "dispensacao-orientacoes",
			Title:       "Orientações Gerais de Dispensação",
			Category:    model.CategoryGeneral,
			Priority:    0.6,
			Source:      "Roteiro de Dispensação",
			LastUpdated: updated,
			Tags:        []string{"dispensação", "orientação"},
			Content:     "Na dispensação do esquema PQT-U o farmacêutico deve conferir o peso e a idade do paciente, " +
				"orientar sobre horários das doses diárias e a data da próxima dose supervisionada. " +
				"O paciente deve ser informado sobre efeitos esperados, como a coloração alaranjada da urina, " +
				"e orientado a procurar a unidade de saúde diante de qualquer reação grave. " +
				"O tratamento da hanseníase é gratuito e disponível no SUS.",
		},
	}
}

// Seed loads the base corpus into idx, logging but tolerating
// individual failures so one bad document cannot block startup.
func Seed(ctx context.Context, idx *Index) int {
	loaded := 0
	for _, doc := range SeedDocuments() {
		if idx.AddDocument(ctx, doc) {
			loaded++
		}
	}
	logutil.GetLogger(ctx).Info("seed corpus loaded", zap.Int("documents", loaded))
	return loaded
}
