package service

import "fapassist/internal/intent"

// First-turn replies, checked in order against the question.
var firstTurnTemplates = []struct {
	match func(string) bool
	text  string
}{
	{
		func(q string) bool { return intent.MentionsBlinkingIndicator(q) || intent.MentionsFlash(q) },
		"Bonjour ! Je comprends que voir un voyant FAP clignoter peut être inquiétant. Rassurez-vous, cela signifie que votre véhicule a détecté un filtre à particules très encrassé et s'est mis en mode de protection pour éviter des dommages. Le moteur limite sa puissance pour se protéger, mais vous pouvez encore rouler sur de courtes distances. Pour mieux vous aider, depuis combien de temps ce voyant clignote-t-il ? Et avez-vous remarqué d'autres symptômes comme une perte de puissance importante ou une fumée noire à l'échappement ?",
	},
	{
		intent.MentionsWarningLight,
		"Bonjour ! Je comprends votre inquiétude concernant ce voyant FAP qui s'allume. C'est effectivement préoccupant mais rassurez-vous, c'est un problème fréquent et généralement résoluble. Le FAP (filtre à particules) capture les particules polluantes de votre moteur diesel. Avec le temps, il s'encrasse progressivement, d'où ce signal d'alerte. La bonne nouvelle c'est qu'un nettoyage professionnel évite le remplacement coûteux. Pour vous orienter vers la meilleure solution, avez-vous aussi remarqué une perte de puissance ou une fumée noire à l'échappement ?",
	},
	{
		func(q string) bool { return intent.MentionsClogging(q) || intent.MentionsFilter(q) },
		"Bonjour ! Je vois que vous avez détecté un problème de DPF (filtre à particules) saturé. C'est un souci classique sur les diesels modernes, mais pas de panique ! Ce filtre capture les suies pour protéger l'environnement, mais il finit par se colmater. Heureusement, notre nettoyage haute pression restaure ses performances pour seulement 99€ minimum, bien moins cher qu'un remplacement. Pour vous proposer la solution la plus adaptée, depuis quand observez-vous ce problème ? Et faites-vous plutôt de la ville ou de l'autoroute ?",
	},
	{
		intent.MentionsPowerLoss,
		"Bonjour ! Cette perte de puissance que vous ressentez est effectivement frustrante au quotidien. Sur les véhicules diesel, c'est souvent lié à un filtre à particules encrassé qui empêche le moteur de respirer correctement. Imaginez un aspirateur avec un sac plein - c'est exactement ce qui arrive à votre moteur ! Pour mieux comprendre votre situation, cette perte est-elle progressive ou soudaine ? Et avez-vous un voyant FAP allumé sur votre tableau de bord ?",
	},
	{
		intent.MentionsBlackSmoke,
		"Bonjour ! Cette fumée noire que vous observez est inquiétante, je comprends. C'est généralement le signe que votre FAP (filtre à particules) ne peut plus retenir les suies correctement car il est saturé. Votre moteur rejette alors directement les particules. Pour évaluer la gravité, cette fumée apparaît-elle surtout à l'accélération ? Et depuis combien de temps l'observez-vous ?",
	},
}

const generalFirstTurnReply = "Bonjour ! Je suis là pour vous aider avec votre problème de FAP. Les filtres à particules sont essentiels mais peuvent s'encrasser avec le temps, surtout en conduite urbaine. La bonne nouvelle, c'est qu'un nettoyage professionnel évite le remplacement coûteux et restaure les performances. Pour vous orienter au mieux, pouvez-vous me décrire les symptômes que vous observez : voyant allumé, perte de puissance, ou fumée noire ?"

// Replies used when the language model cannot answer.
const (
	// the API answered with an error status
	fallbackReply = "Je comprends votre situation. Pour affiner mon diagnostic, pouvez-vous me dire si vous faites plutôt de la ville ou de l'autoroute ? Cette information m'aidera à évaluer le niveau d'encrassement de votre FAP."
	// the API answered without content
	emptyReply = "Pour mieux vous aider, pouvez-vous préciser depuis quand vous observez ces symptômes ?"
	// the API could not be reached
	backupReply = "Je comprends votre problème. Pouvez-vous me dire si vous observez d'autres symptômes ?"
)

// FirstTurnReply returns the pre-written empathetic reply matching the
// symptoms in question. A blinking light wins over every other symptom.
func FirstTurnReply(question string) string {
	for _, t := range firstTurnTemplates {
		if t.match(question) {
			return t.text
		}
	}
	return generalFirstTurnReply
}
