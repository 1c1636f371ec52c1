package mcpserver

// ExportFormatContract describes the layout document produced by
// export_layout and accepted by import_layout.
const ExportFormatContract = `# Layout Export Format

A layout document is a JSON object with these keys (always emitted in
sorted order):

` + "```" + `json
{
  "exportDate": "2026-01-15T09:30:00Z",
  "fullscreenMode": false,
  "gridColumns": 6,
  "gridRows": 4,
  "pages": [
    {"folderApps": [], "kind": "应用", "name": "Safari", "pageIndex": 0, "path": "/Applications/Safari.app", "position": 0},
    {"folderAppPaths": ["/Applications/Chess.app"], "folderApps": ["Chess"], "kind": "文件夹", "name": "Games", "pageIndex": 0, "path": "文件夹: Games", "position": 1},
    {"folderApps": [], "kind": "空槽位", "name": "", "pageIndex": 0, "path": "空槽位", "position": 2}
  ],
  "totalItems": 3,
  "totalPages": 1
}
` + "```" + `

## Rules

1. **pages** is required and must not be empty. It lists every slot in grid
   order; pageIndex and position are informational.
2. **kind** is one of ` + "`" + `应用` + "`" + ` (application), ` + "`" + `文件夹` + "`" + ` (folder) or
   ` + "`" + `空槽位` + "`" + ` (empty slot). Unknown kinds become empty slots.
3. **Applications** are matched by path against the apps already in the
   launcher. Any other application becomes an empty slot.
4. **Folders** list member names in folderApps and, when known, member paths in
   folderAppPaths. Members are matched by path first, then by name. A folder
   whose members are all missing is dropped.
5. An application is placed once. Later slots that name an already placed
   application become empty.
6. Launcher apps the document does not mention are appended on a new page.
7. **gridColumns** and **gridRows** are informational; importing keeps the
   current grid. **fullscreenMode** is restored.
`
