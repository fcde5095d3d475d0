package vision

// comparisonPrompt instructs the model to score the photographed cover
// against the supplied candidate list.
const comparisonPrompt = `You compare a photographed comic book cover against a numbered list of catalog candidates.
Study the cover art, logo, trade dress, issue number, and publisher marks, then pick the candidate that depicts the same printing.
Respond with JSON only:
{"bestMatchIndex": <1-based index of the matching candidate, or 0 if none match>, "similarityScore": <0.0-1.0 confidence that the chosen candidate is this exact cover>}
A different printing, foreign edition, or variant with altered trade dress is not a match. If unsure, lower the score rather than guessing.`

// identificationPrompt instructs the model to name the comic with no
// candidate list. Used both for the primary identification path and the
// low-similarity fallback so the two cannot drift apart.
const identificationPrompt = `You identify a comic book from a photograph of its cover.
Read the logo, issue number, publisher marks, and cover art. Recognizable characters (Spider-Man, Batman, Hulk, Wolverine, Venom, Superman, Spawn, and similar) are strong signals for the series even when the logo is unreadable.
Respond with JSON only:
{"title": <series title or empty string>, "issue": <issue number as printed or empty string>, "publisher": <publisher name or empty string>, "character": <most prominent character or empty string>, "confidence": <0.0-1.0>}
Leave fields empty rather than inventing values. Confidence reflects how certain you are of the series title specifically.`
