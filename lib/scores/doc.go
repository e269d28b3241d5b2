// Package scores provides relationship scores between players.
//
// The server projects every claim for every viewer and attaches the viewer's
// score towards the claim's owner. Clients use it to decide how a claim is
// shown (enemy, neutral, ally). Scores come from a YAML table that can be
// edited while the server runs.
package scores
