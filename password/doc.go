// Package password implements password hashing and verification.
//
// [Bcrypt] is the default; [Argon2] produces argon2id PHC strings. [Chain]
// lets a deployment switch algorithms: new hashes use the primary, old hashes
// still verify and report NeedsUpgrade so the engine re-hashes them on the next
// successful login.
//
// Password policy (minimum length) is enforced by the engine, not here.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other saasAuth package.
//   - Log plaintext passwords.
package password
