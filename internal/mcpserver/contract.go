package mcpserver

// NoteFormatContract describes how note content is interpreted, for LLM
// consumers creating or importing notes.
const NoteFormatContract = `# ZenNote Note Format

A ZenNote note is a short piece of free-form text. There are no titles,
folders or links: a note is its content, its tags and up to 10 images.

## Content

- Plain text or Markdown, UTF-8. Any language is fine.
- Content must not be blank.
- Inline hashtags such as ` + "`" + `#reading` + "`" + ` or ` + "`" + `#项目` + "`" + ` are recognised
  as tags when the note is imported from Markdown.

## Tags

- Pass tags to ` + "`" + `create_note` + "`" + ` as a comma separated list, without the leading ` + "`" + `#` + "`" + `.
- Tag names are matched case-insensitively when searching, but stored as given.
- A tag that no live note uses disappears from the tag list automatically.

## Images

- Attach images with the ` + "`" + `attach_image` + "`" + ` tool.
- A ` + "`" + `data:image/...;base64,` + "`" + ` URI is stored by the server and served under
  ` + "`" + `/api/images/` + "`" + `. Any other URI is attached as a reference.
- Supported uploaded formats: png, jpg, gif, webp, svg.

## Import documents

Multiple notes can be imported as one Markdown document. Notes are separated
by a line holding only ` + "`" + `---` + "`" + `. A leading YAML frontmatter block may list
tags that apply to every note in the document:

` + "```" + `markdown
---
tags: [journal, 2025]
---
Finished the first draft of the essay. #writing
---
Idea: a reading list grouped by season.
` + "```" + `

Notes whose content already exists (ignoring case and surrounding space) are
skipped.
`
