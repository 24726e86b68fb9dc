package embedded

import (
	_ "embed"
)

// Embedded naming data
//
//go:embed data/words.txt
var WordsTxt []byte

//go:embed data/namer_prompt.txt
var NamerPromptTxt []byte
