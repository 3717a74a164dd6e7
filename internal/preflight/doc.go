// Package preflight provides readiness checks for the directories and
// external services captioner depends on.
//
// These checks run in two contexts:
//   - The daemon reports CheckSystemDeps through /api/status.
//   - The CLI "captioner check" command runs RunAll, optionally including the
//     network checks against the ASR API and Cloudinary.
package preflight
