// Package casekey formats and parses the two-level key layout shared by the
// raw and processed buckets: account_number=<id>/case_number=<id>/<file>.
package casekey

import (
	"fmt"
	"strings"
)

const (
	accountTag = "account_number="
	caseTag    = "case_number="

	// DataObject marks a case as fully processed when it exists under the
	// case prefix in the processed bucket.
	DataObject = "data.json"
	// AnnotationObject holds the case communications, stored alongside the
	// case data in the raw bucket.
	AnnotationObject = "annotation.json"

	// AccountScanPrefix is the listing prefix that matches all account
	// folders in a bucket.
	AccountScanPrefix = accountTag
)

// Key identifies one support case across both buckets.
type Key struct {
	AccountID string
	CaseID    string
}

// AccountPrefix returns "account_number=<id>/".
func AccountPrefix(accountID string) string {
	return accountTag + accountID + "/"
}

// AccountFromPrefix extracts the account ID from "account_number=<id>/".
func AccountFromPrefix(prefix string) (string, error) {
	trimmed := strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(trimmed, accountTag) || strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("not an account prefix: %q", prefix)
	}
	id := strings.TrimPrefix(trimmed, accountTag)
	if id == "" {
		return "", fmt.Errorf("empty account id in prefix: %q", prefix)
	}
	return id, nil
}

// Path returns the key without a trailing slash, the form carried in queue
// messages: "account_number=<id>/case_number=<id>".
func (k Key) Path() string {
	return accountTag + k.AccountID + "/" + caseTag + k.CaseID
}

// Prefix returns the listing prefix for the case folder, with trailing slash.
func (k Key) Prefix() string {
	return k.Path() + "/"
}

// DataKey returns the object key of the terminal marker for this case.
func (k Key) DataKey() string {
	return k.Prefix() + DataObject
}

// AnnotationKey returns the object key of the communications document.
func (k Key) AnnotationKey() string {
	return k.Prefix() + AnnotationObject
}

// Parse reads a case folder path back into a Key. Accepts both the slashed
// prefix form and the message path form.
func Parse(path string) (Key, error) {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("malformed case path: %q", path)
	}
	if !strings.HasPrefix(parts[0], accountTag) || !strings.HasPrefix(parts[1], caseTag) {
		return Key{}, fmt.Errorf("malformed case path: %q", path)
	}
	k := Key{
		AccountID: strings.TrimPrefix(parts[0], accountTag),
		CaseID:    strings.TrimPrefix(parts[1], caseTag),
	}
	if k.AccountID == "" || k.CaseID == "" {
		return Key{}, fmt.Errorf("malformed case path: %q", path)
	}
	return k, nil
}

// CaseIDFromDataKey extracts the case ID from a processed-bucket object key
// ending in /data.json, or "" if the key is not a terminal marker.
func CaseIDFromDataKey(key string) string {
	if !strings.HasSuffix(key, "/"+DataObject) {
		return ""
	}
	k, err := Parse(strings.TrimSuffix(key, "/"+DataObject))
	if err != nil {
		return ""
	}
	return k.CaseID
}
