// Package studentdirectory owns student identity inside the identity-access
// context: registration, login with access and refresh tokens, profiles,
// avatars and the directory listing. The role field is written here only on
// registration; afterwards elections own it.
package studentdirectory
