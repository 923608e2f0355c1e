// Package sanitizer normalizes client input before validation and storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized comes back empty and is rejected by the validators.
//
// Normalization includes:
//   - Phone numbers: E.164 (+[country][number]), parsed against a default region
//   - Names: collapse whitespace, drop invisible format runes, NFC
//   - Emails: trimmed and lowercased
//   - Tax ids: digits only
package sanitizer
