// Package main hosts the poster service entrypoint.
//
// Architecture overview:
//   - Worklist: internal/store loads product references and affiliate links from the configured backend
//     (CSV file or embedded SQLite database). Each row gets a stable digest identity so completion marks
//     survive reordering and restarts.
//   - Posting engine: internal/worker drains the pending set one item at a time. Each item is
//     canonicalized, fetched, announced, then durably marked completed. Fetch-or-post failures are
//     retried up to the attempt budget with a fixed backoff; an exhausted item is skipped for the
//     current pass but stays pending for the next one.
//   - Fetch pipeline: internal/fetcher/amazon scrapes the product title and primary image from the
//     retail page using a Colly collector and goquery selectors, throttled by a shared rate limiter.
//   - Announcements: internal/notifier/telegram posts a photo message with a Markdown caption to the
//     configured chat via the Bot API. Missing credentials fail startup, not the first attempt.
//   - Configuration & plumbing: Viper populates config from env/files (a .env file is honored); zap
//     provides structured logging; Prometheus counters track items, attempts, and passes, exported by
//     the optional ops HTTP server alongside /healthz.
//
// Operational notes:
//   - Pacing: a fixed delay separates consecutive items and a longer idle delay separates passes; the
//     worklist is re-read from disk after each idle so externally appended rows are picked up.
//   - Shutdown: SIGINT/SIGTERM cancel the root context; in-flight sleeps and fetches unblock promptly
//     and the completed marks already written stay durable.
//   - Idempotence: completion is written before the in-memory flag flips, so a crash between post and
//     persist is the only window where a duplicate announcement can occur. That case is logged loudly.
//
// Quick checklist:
//   - Configure env vars: POSTBOT_TELEGRAM_TOKEN and POSTBOT_TELEGRAM_CHAT_ID (legacy TELEGRAM_TOKEN /
//     TELEGRAM_CHAT_ID also work), POSTBOT_STORE_BACKEND=csv/sqlite, POSTBOT_STORE_PATH, and the
//     engine delays when the defaults need tuning.
//   - Create a starter worklist: go run ./cmd/postbot -init-worklist, then edit the file.
//   - Run locally: go run ./cmd/postbot -config config.yaml (or rely solely on env overrides).
package main
