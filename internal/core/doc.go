// Package core provides the business logic of the study backend.
//
// It holds all domain rules independent of any transport or database. It can
// be used by the HTTP handlers, the operator CLI, or tests without
// modification; persistence is reached only through the [Store] interface.
//
// # Architecture
//
// The package is organized around a few pieces:
//
//   - Ingestion: [Service.UploadWordSet] decodes an upload with the configured
//     source encoding, parses it into question/answer records and stores the
//     word set and its entries in a single transaction.
//   - Quizzes: [Service.BuildQuiz] loads an owned word set and asks the
//     [Synthesizer] for one multiple-choice item per entry.
//   - Experience: [ApplyExperience] is the level-up state machine. It runs
//     inside a transaction owned by its caller, such as
//     [Service.CompleteStudySession].
//
// # Upload Flow
//
//  1. Client calls [Service.UploadWordSet] with an io.Reader
//  2. An [UploadLimiter] slot is taken, bounding concurrent ingestion
//  3. The file is read up to the size limit and decoded to UTF-8
//  4. Rows missing a question or an answer are skipped and counted
//  5. The word set and its entries are committed together, or not at all
//
// # Concurrency
//
// Experience grants lock the character row and update it with a
// compare-and-swap against the state they read. A grant that still loses a
// race fails with [ErrCharacterConflict] and is retried by
// [Service.GrantExperience].
//
// # Errors
//
// Every error wraps one sentinel from errors.go. Use [StatusCode] for the
// transport status and [MapError] for the message shown to users.
package core
