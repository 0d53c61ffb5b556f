package mobile

import "unicode/utf16"

// Identity is the local notification id derived from a content id. It doubles
// as the pending-intent request code, so a repeat delivery replaces the slot.
type Identity int32

// IdentityOf hashes contentID the way the Android platform hashes strings
// (31*h + c over UTF-16 code units, wrapping at 32 bits).
func IdentityOf(contentID string) Identity {
	var h int32
	for _, c := range utf16.Encode([]rune(contentID)) {
		h = 31*h + int32(c)
	}
	return Identity(h)
}
