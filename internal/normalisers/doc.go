// Package normalisers provides implementations of the ExtractionEngine
// interface for various document formats, plus the registry that
// dispatches raw documents to the best matching engine.
//
// Engines are registered with the Registry at startup. Local parsers
// (plaintext, markdown, html) run in-process; OCR and transcription
// engines call external HTTP services and are retried once on
// transient failure.
package normalisers
