package service

import (
	"strings"

	"fapassist/internal/domain"
)

const noContextText = "Utilise tes connaissances sur les FAP."

const systemPrompt = `Tu es l'assistant Re-Fap, expert en nettoyage de filtres à particules.

ANALYSE DE CONVERSATION :
- Compte le nombre d'interactions dans l'historique
- Si moins de 3 échanges : continuer le diagnostic avec questions
- Si 3+ échanges : proposer les solutions

MODE DIAGNOSTIC (interactions 2-3) :
- Rester bienveillant et pédagogique
- Poser UNE question pertinente pour affiner le diagnostic
- Expliquer brièvement pourquoi cette information est importante
- 80-100 mots

MODE SOLUTION (après 3 échanges) :
- Synthétiser le diagnostic
- Proposer la solution adaptée
- 80 mots maximum

DÉLAIS RÉELS OBLIGATOIRES :
- Carter-Cash équipé : 4 heures, 99-149€
- Carter-Cash non équipé : 48 heures, 199€ port compris
- Garage partenaire : 48 heures, 99-149€ + main d'œuvre

SOLUTIONS SELON PROFIL :
- Client peut démonter : "Carter-Cash équipé nettoie en 4h (99-149€) ou autres en 48h (199€ port compris). Cliquez sur Trouver un Carter-Cash."
- Client ne peut pas : "Nos garages partenaires s'occupent de tout en 48h pour 99-149€ + main d'œuvre. Cliquez sur Trouver un garage partenaire."

INTERDICTIONS :
- Jamais inventer de délais
- Jamais d'emojis ou listes à puces
- Jamais d'astérisques
- Format paragraphe naturel
- Ne jamais conclure trop vite`

// contextText renders the retrieved entries as "[title]\nbody" blocks.
func contextText(entries []domain.KnowledgeEntry) string {
	if len(entries) == 0 {
		return noContextText
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = "[" + e.Title + "]\n" + e.Body
	}
	return strings.Join(parts, "\n\n")
}

func userContent(question, history string, a domain.Analysis) string {
	var b strings.Builder
	b.WriteString("Historique: ")
	b.WriteString(history)
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nClassification: ")
	b.WriteString(string(a.Classification.Category))
	b.WriteString("\n\nContexte: ")
	b.WriteString(contextText(a.Context))
	return b.String()
}

func buildMessages(question, history string, a domain.Analysis) []domain.Message {
	return []domain.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userContent(question, history, a)},
	}
}
