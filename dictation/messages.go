package dictation

import (
	"strings"

	"dubtap/recording"
	"dubtap/transcriber"
)

// Messages are the notices inserted in place of a transcript.
type Messages struct {
	CaptureFailed  string
	NoSpeech       string
	MissingKey     string
	MicDenied      string
	MicNotFound    string
	MicInUse       string
	MicUnsupported string
	MicFailed      string
	// Transcription overrides the English failure messages from the
	// transcriber package.
	Transcription map[transcriber.Failure]string
}

var catalog = map[string]Messages{
	"en": {
		CaptureFailed:  "[dubtap] Capture failed, please try again.",
		NoSpeech:       "[dubtap] No speech detected.",
		MissingKey:     "[dubtap] No API key configured. Set one in the settings file or environment.",
		MicDenied:      "[dubtap] Microphone access was denied.",
		MicNotFound:    "[dubtap] No microphone found.",
		MicInUse:       "[dubtap] The microphone is in use by another application.",
		MicUnsupported: "[dubtap] The microphone does not support the required audio format.",
		MicFailed:      "[dubtap] Could not start the microphone.",
	},
	"es": {
		CaptureFailed:  "[dubtap] La captura falló, inténtalo de nuevo.",
		NoSpeech:       "[dubtap] No se detectó voz.",
		MissingKey:     "[dubtap] No hay ninguna clave de API configurada.",
		MicDenied:      "[dubtap] Se denegó el acceso al micrófono.",
		MicNotFound:    "[dubtap] No se encontró ningún micrófono.",
		MicInUse:       "[dubtap] Otra aplicación está usando el micrófono.",
		MicUnsupported: "[dubtap] El micrófono no admite el formato de audio necesario.",
		MicFailed:      "[dubtap] No se pudo iniciar el micrófono.",
		Transcription: map[transcriber.Failure]string{
			transcriber.FailureAuth:      "[dubtap] La clave de API fue rechazada.",
			transcriber.FailureRateLimit: "[dubtap] Límite de solicitudes alcanzado, espera un momento.",
			transcriber.FailureTimeout:   "[dubtap] La transcripción tardó demasiado.",
			transcriber.FailureNetwork:   "[dubtap] Error de red, revisa tu conexión.",
		},
	},
	"de": {
		CaptureFailed:  "[dubtap] Aufnahme fehlgeschlagen, bitte erneut versuchen.",
		NoSpeech:       "[dubtap] Keine Sprache erkannt.",
		MissingKey:     "[dubtap] Kein API-Schlüssel konfiguriert.",
		MicDenied:      "[dubtap] Der Zugriff auf das Mikrofon wurde verweigert.",
		MicNotFound:    "[dubtap] Kein Mikrofon gefunden.",
		MicInUse:       "[dubtap] Das Mikrofon wird von einer anderen Anwendung verwendet.",
		MicUnsupported: "[dubtap] Das Mikrofon unterstützt das benötigte Audioformat nicht.",
		MicFailed:      "[dubtap] Das Mikrofon konnte nicht gestartet werden.",
		Transcription: map[transcriber.Failure]string{
			transcriber.FailureAuth:      "[dubtap] Der API-Schlüssel wurde abgelehnt.",
			transcriber.FailureRateLimit: "[dubtap] Anfragelimit erreicht, bitte kurz warten.",
			transcriber.FailureTimeout:   "[dubtap] Zeitüberschreitung bei der Transkription.",
			transcriber.FailureNetwork:   "[dubtap] Netzwerkfehler, bitte Verbindung prüfen.",
		},
	},
	"fr": {
		CaptureFailed:  "[dubtap] La capture a échoué, veuillez réessayer.",
		NoSpeech:       "[dubtap] Aucune parole détectée.",
		MissingKey:     "[dubtap] Aucune clé d'API configurée.",
		MicDenied:      "[dubtap] L'accès au microphone a été refusé.",
		MicNotFound:    "[dubtap] Aucun microphone trouvé.",
		MicInUse:       "[dubtap] Le microphone est utilisé par une autre application.",
		MicUnsupported: "[dubtap] Le microphone ne prend pas en charge le format audio requis.",
		MicFailed:      "[dubtap] Impossible de démarrer le microphone.",
		Transcription: map[transcriber.Failure]string{
			transcriber.FailureAuth:      "[dubtap] La clé d'API a été refusée.",
			transcriber.FailureRateLimit: "[dubtap] Limite de requêtes atteinte, patientez un instant.",
			transcriber.FailureTimeout:   "[dubtap] La transcription a expiré.",
			transcriber.FailureNetwork:   "[dubtap] Erreur réseau, vérifiez votre connexion.",
		},
	},
}

// MessagesFor picks the catalog for a language tag such as "de" or
// "fr-CA", falling back to English.
func MessagesFor(lang string) Messages {
	lang = strings.ToLower(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if m, ok := catalog[lang]; ok {
		return m
	}
	return catalog["en"]
}

func (m Messages) failure(f transcriber.Failure) string {
	if msg, ok := m.Transcription[f]; ok {
		return msg
	}
	return "[dubtap] " + f.Message()
}

func (m Messages) acquisition(k recording.AcquisitionKind) string {
	switch k {
	case recording.PermissionDenied:
		return m.MicDenied
	case recording.NotFound:
		return m.MicNotFound
	case recording.InUse:
		return m.MicInUse
	case recording.Overconstrained, recording.TypeError:
		return m.MicUnsupported
	}
	return m.MicFailed
}
