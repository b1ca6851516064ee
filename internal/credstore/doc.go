// Package credstore persists the station credential.
//
// Each store holds at most one credential under a namespace. Namespaces
// are isolated: two stores with different namespaces never see each
// other's data.
//
// # Stores
//
//   - FileStore keeps one YAML document per namespace in a directory.
//     Writes go to a temporary file that is renamed into place, so a
//     reader sees either the old credential or the new one.
//   - MemoryStore keeps the credential in process memory, for tests and
//     the simulated link.
//
// Both implement station.CredentialStore.
//
// # File Format
//
//	# zubwifi credential store
//	wifi_ssid: HomeNet
//	wifi_pass: s3cret
//
// A document missing either key loads as "no credential".
package credstore
