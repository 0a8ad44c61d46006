package workspace

// defaultClaudeMD seeds app/CLAUDE.md. The remote agent treats this file as
// its working instructions; the remote owns it after the first sync.
const defaultClaudeMD = `# Project Instructions

This folder is synced with a remote development sandbox. An AI coding agent
reads the metadata summaries under meta_data/ and writes analysis scripts
under scripts/.

Rules:

- Read input data descriptions from meta_data/input_metadata.txt. The raw
  input files themselves never leave the user's machine.
- Write Python scripts into scripts/. Scripts run locally with the project
  root available via the VIBEFOUNDRY_PROJECT_ROOT environment variable.
- Scripts should read from the input/ folder and write results to output/.
- Never place data files (csv, xlsx, json) in this folder.
`

// defaultMetadataFarmer seeds app/metadatafarmer.py, the remote-side summary
// generator. The remote owns and rewrites it; the local copy only exists so a
// fresh project has the full layout.
const defaultMetadataFarmer = `#!/usr/bin/env python3
"""Regenerates meta_data summaries. Owned by the remote sandbox."""

import os

META_DIR = os.path.join(os.path.dirname(os.path.abspath(__file__)), "meta_data")


def main():
    os.makedirs(META_DIR, exist_ok=True)
    for name in ("input_metadata.txt", "output_metadata.txt"):
        path = os.path.join(META_DIR, name)
        if not os.path.exists(path):
            open(path, "w").close()


if __name__ == "__main__":
    main()
`
