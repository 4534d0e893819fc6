// Package integritystatement implements the Integrity Statement Generator
// (§4.4): a fixed, neutral template rendered twice so the document can
// embed a hash of its own text — grounded on
// original_source/services/integrity_statement.py, whose two-pass
// render/hash/substitute contract this package reproduces exactly. The
// template text itself is carried over near-verbatim (it is specified
// content, not generated code) with its Python string formatting
// translated to Go's text/template.
package integritystatement

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/errs"
)

const selfHashPlaceholder = "[COMPUTED_AFTER_RENDER]"

var statementTemplate = template.Must(template.New("integrity_statement").Parse(strings.TrimLeft(`
EVIDENT CORE — EVIDENCE INTEGRITY STATEMENT

Document ID: {{.StatementID}}
Generated: {{.Timestamp}}
System/Build: {{.AppName}} {{.Version}} ({{.GitCommit}})
Export Scope: {{.Scope}}
Scope Identifier: {{.ScopeID}}


1. Purpose

This document describes how this system ingests, stores, processes, and
exports digital evidence while preserving integrity and producing
verifiable outputs. This document is a technical description, not legal
advice, and draws no legal conclusions.


2. What This System Does (Technical Functions)

This system provides:

  - Ingestion of files into a content-addressed evidence store.
  - Cryptographic hashing (SHA-256) to identify and verify file integrity.
  - Immutable storage of original files ("originals").
  - Generation of derivative files explicitly linked to their originals.
  - Append-only audit logging of key evidence-handling events.
  - Export packaging containing evidence, manifests, and audit records to
    support independent verification.


3. What This System Does Not Do (Limitations)

This system does not:

  - Alter, enhance, filter, or otherwise modify original evidence files.
  - Determine authenticity, intent, fault, liability, or credibility of
    persons or events.
  - Provide legal conclusions or jurisdiction-specific legal determinations.
    This document contains no legal advice.
  - Create or infer facts not present in the ingested evidence and recorded
    metadata.


4. Evidence Identity and Hashing

4.1 Hash Algorithm
This system computes a SHA-256 hash for each ingested file. The SHA-256
hash is recorded and used as an integrity identifier for the bytes of that
file.

4.2 Duplicate Detection
If a file is ingested whose SHA-256 hash matches an existing stored item,
the system treats it as the same underlying bytes. The existing evidence
item may be linked to additional cases without duplicating the original
bytes.

4.3 Hash Verification
A party can independently compute SHA-256 hashes on exported files and
compare them to the hashes recorded in the export manifest(s).


5. Immutability of Originals

5.1 Immutable Originals
Original evidence files are stored as immutable objects. The system does
not overwrite original bytes. A different file uploaded later results in a
different SHA-256 hash and a distinct evidence identity.

5.2 Provenance via Audit and Links
Case membership is stored as a relationship. Linking evidence to a case
does not modify original evidence content.


6. Derivatives and Referential Integrity

6.1 Derivative Definition
Derivatives include outputs such as Bates-stamped copies, redacted copies,
and manifests and reports generated for export and verification.

6.2 Derivative Hashing
Each derivative is hashed (SHA-256) and recorded. Each derivative
references its originating evidence item (original hash/identifier) to
preserve traceability.

6.3 No Derivative Substitution of Originals
Derivatives are provided for review and production only. The original
evidence remains the authoritative stored file.


7. Audit Logging (Append-Only)

7.1 Audit Model
This system records evidence-handling events in an append-only audit
stream per evidence manifest, including ingestion, derivative creation,
and export generation.

7.2 Immutability of Audit Records
Audit entries are appended and are not edited or removed by normal
application operations.


8. Export Packaging and Reproducibility

8.1 Export Contents
Exports may include originals or references, derivatives, manifest JSON
files listing hashes and relationships, an audit log extract, and this
integrity statement.

8.2 Reproducibility Principle
An export is considered reproducible if the exported hashes match the
manifest hashes, and re-exporting the same scope from the same stored
originals and recorded transformations yields matching content hashes for
included artifacts.


9. Independent Verification Procedure

To verify an export:

  1. Extract the archive to a local folder.
  2. Locate the manifest file: {{.ManifestFilename}}.
  3. Compute SHA-256 hashes of exported files using an independent tool.
  4. Compare computed hashes to the hashes recorded in the manifest.
  5. Review audit_log.json to confirm the sequence of ingest, derivative
     creation, and export generation.

If any hash does not match, the export integrity is not verified.


10. Attestation

This document is generated by the system as part of the export process.
It describes system behavior and provides verification instructions. It
does not attest to external authenticity beyond the cryptographic and
audit properties described herein.

Generated by: {{.SystemComponent}}
Self-hash of this statement: {{.SelfHash}}
Manifest Hash: {{.ManifestSHA256}}
`, "\n")))

// Request carries every substitution field the template needs.
type Request struct {
	Scope           string
	ScopeID         string
	ManifestSHA256  string
	ManifestFilename string
	AppName         string
	Version         string
	GitCommit       string
	SystemComponent string
	GeneratedAt     time.Time
	StatementID     string
}

// Result is the outcome of Generate. TextSHA256 is the self-hash embedded in
// Text: the SHA-256 of the text with the placeholder in its place.
type Result struct {
	Text        string `json:"text"`
	TextSHA256  string `json:"text_sha256"`
	StatementID string `json:"statement_id"`
}

type renderFields struct {
	StatementID, Timestamp, AppName, Version, GitCommit string
	Scope, ScopeID, ManifestFilename, ManifestSHA256    string
	SystemComponent, SelfHash                           string
}

// Generate renders req through the two-pass contract: pass 1 substitutes
// every field except the self-hash (left as a placeholder), pass 2 hashes
// the pass-1 bytes and substitutes that hash in place of the placeholder.
// Given identical req values, Generate returns byte-identical text on every
// call, platform, and process — GeneratedAt and StatementID must be
// supplied explicitly by the caller for this to hold; Generate itself never
// reads the wall clock or a random source.
func Generate(req Request) (Result, error) {
	if req.AppName == "" {
		req.AppName = "evidcore"
	}
	if req.Version == "" {
		req.Version = "1.0.0"
	}
	if req.GitCommit == "" {
		req.GitCommit = "unknown"
	}
	if req.SystemComponent == "" {
		req.SystemComponent = "IntegrityStatementGenerator"
	}
	if req.ManifestFilename == "" {
		req.ManifestFilename = "manifest.json"
	}
	if req.StatementID == "" {
		return Result{}, errs.New(errs.KindValidationError, "statement_id is required")
	}

	fields := renderFields{
		StatementID:      req.StatementID,
		Timestamp:        req.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		AppName:          req.AppName,
		Version:          req.Version,
		GitCommit:        req.GitCommit,
		Scope:            req.Scope,
		ScopeID:          req.ScopeID,
		ManifestFilename: req.ManifestFilename,
		ManifestSHA256:   req.ManifestSHA256,
		SystemComponent:  req.SystemComponent,
		SelfHash:         selfHashPlaceholder,
	}

	var pass1 bytes.Buffer
	if err := statementTemplate.Execute(&pass1, fields); err != nil {
		return Result{}, errs.Wrap(errs.KindValidationError, "render integrity statement pass 1", err)
	}

	selfHash := canonical.HashBytes(pass1.Bytes())
	text := strings.Replace(pass1.String(), selfHashPlaceholder, selfHash, 1)

	return Result{Text: text, TextSHA256: selfHash, StatementID: req.StatementID}, nil
}

// Verify recomputes the self-hash of text by substituting selfHash back
// with the placeholder and rehashing, confirming the embedded hash matches
// what a fresh render would have produced.
func Verify(text, selfHash string) bool {
	restored := strings.Replace(text, selfHash, selfHashPlaceholder, 1)
	return canonical.HashBytes([]byte(restored)) == selfHash
}
