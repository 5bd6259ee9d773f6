// Package reference maps human-assigned node references to MAC addresses.
//
// A reference map is loaded once from a properties file of the form
//
//	# reference=mac
//	lab-node-1=0004A30000112233
//	XBTO3VKJ=0x0000000000001A2B
//
// and is immutable afterwards. Lookup goes reference -> MAC, Reference goes
// MAC -> reference. When two references share a MAC, the reverse direction
// returns the one that appears first in the file.
//
// Load failures are *ConfigError (file missing, unreadable, a directory)
// or *ParseError (a malformed entry); the whole load fails on the first bad
// entry rather than skipping it.
package reference
