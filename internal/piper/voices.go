package piper

import (
	"fmt"
	"strings"

	"ttsgate/internal/tts"
)

// catalog lists the piper voices ttsgate knows how to fetch and run.
// Names follow the upstream <locale>-<voice>-<quality> convention.
var catalog = []tts.Voice{
	{Name: "en_US-amy-medium", Language: "en-US", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Amy - English US female voice"},
	{Name: "en_US-lessac-medium", Language: "en-US", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Lessac - English US female voice"},
	{Name: "en_US-hfc_female-medium", Language: "en-US", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "HFC Female - English US female voice"},
	{Name: "en_GB-alba-medium", Language: "en-GB", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Alba - English GB female voice"},
	{Name: "es_ES-carme-medium", Language: "es-ES", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Carme - Spanish ES female voice"},
	{Name: "es_MX-teresa-medium", Language: "es-MX", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Teresa - Spanish MX female voice"},
	{Name: "fr_FR-siwis-medium", Language: "fr-FR", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Siwis - French female voice"},
	{Name: "de_DE-eva_k-x_low", Language: "de-DE", Gender: "female", Quality: "x_low", SampleRate: 16000, Description: "Eva K - German female voice"},
	{Name: "it_IT-paola-medium", Language: "it-IT", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Paola - Italian female voice"},
	{Name: "pt_BR-lais-medium", Language: "pt-BR", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Lais - Portuguese BR female voice"},
	{Name: "ru_RU-irina-medium", Language: "ru-RU", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Irina - Russian female voice"},
	{Name: "zh_CN-huayan-medium", Language: "zh-CN", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Huayan - Chinese female voice"},
	{Name: "nl_NL-mls_5809-low", Language: "nl-NL", Gender: "female", Quality: "low", SampleRate: 16000, Description: "MLS 5809 - Dutch female voice"},
	{Name: "sv_SE-nst-medium", Language: "sv-SE", Gender: "multi", Quality: "medium", SampleRate: 22050, Description: "NST - Swedish voice"},
	{Name: "uk_UA-ukrainian_tts-medium", Language: "uk-UA", Gender: "multi", Quality: "medium", SampleRate: 22050, Description: "Ukrainian TTS - Ukrainian voice"},
	{Name: "ar_JO-amina-medium", Language: "ar-JO", Gender: "female", Quality: "medium", SampleRate: 22050, Description: "Amina - Arabic female voice"},
}

// Catalog returns a copy of the known voice list.
func Catalog() []tts.Voice {
	out := make([]tts.Voice, len(catalog))
	copy(out, catalog)
	return out
}

// KnownVoice reports whether name is in the catalog.
func KnownVoice(name string) bool {
	for _, v := range catalog {
		if v.Name == name {
			return true
		}
	}
	return false
}

// voiceRepoPath derives the huggingface repo directory for a voice name.
// "en_US-amy-medium" lives under "en/en_US/amy/medium". The voice part may
// itself contain dashes, so the quality is taken from the last segment.
func voiceRepoPath(name string) (string, error) {
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return "", fmt.Errorf("malformed voice name %q: want <locale>-<voice>-<quality>", name)
	}
	locale := parts[0]
	quality := parts[len(parts)-1]
	voice := strings.Join(parts[1:len(parts)-1], "-")

	lang, _, ok := strings.Cut(locale, "_")
	if !ok {
		return "", fmt.Errorf("malformed voice locale %q in %q", locale, name)
	}
	return fmt.Sprintf("%s/%s/%s/%s", lang, locale, voice, quality), nil
}
