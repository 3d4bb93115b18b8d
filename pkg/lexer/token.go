package lexer

import "strings"

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals
	TokenIdent        // mach_port_t, add
	TokenNumber       // 1000
	TokenString       // "mach/std_types.defs"
	TokenPreprocessor // #ifdef KERNEL_USER
	TokenComment      // only produced with Options.KeepComments

	keywordBeg
	// Declarations
	TokenSubsystem     // subsystem
	TokenRoutine       // routine
	TokenSimpleRoutine // simpleroutine
	TokenType_         // type
	TokenImport        // import
	TokenUImport       // uimport
	TokenSImport       // simport
	TokenSkip          // skip
	TokenServerPrefix  // serverprefix
	TokenUserPrefix    // userprefix
	TokenServerDemux   // serverdemux
	TokenKernelUser    // kerneluser
	TokenKernelServer  // kernelserver

	// Argument directions
	TokenIn          // in
	TokenOut         // out
	TokenInOut       // inout
	TokenRequestPort // requestport
	TokenReplyPort   // replyport
	TokenSReplyPort  // sreplyport
	TokenUReplyPort  // ureplyport
	TokenWaitTime    // waittime
	TokenMsgOption   // msgoption
	TokenMsgSeqno    // msgseqno

	// Type constructors
	TokenArray   // array
	TokenOf      // of
	TokenStruct  // struct
	TokenCString // c_string

	// IPC flags
	TokenIsLong     // islong
	TokenIsNotLong  // isnotlong
	TokenDealloc    // dealloc
	TokenNotDealloc // notdealloc
	TokenServerCopy // servercopy
	TokenCountInOut // countinout
	keywordEnd

	// Symbols
	TokenColon     // :
	TokenSemicolon // ;
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenAssign    // =
	TokenStar      // *
	TokenCaret     // ^
	TokenTilde     // ~
	TokenPlus      // +
	TokenMinus     // -
	TokenSlash     // /
	TokenPipe      // |
	TokenAmpersand // &
	TokenLt        // <
	TokenGt        // >
	TokenDot       // .
)

var tokenNames = map[TokenType]string{
	TokenEOF:           "EOF",
	TokenIdent:         "IDENT",
	TokenNumber:        "NUMBER",
	TokenString:        "STRING",
	TokenPreprocessor:  "DIRECTIVE",
	TokenComment:       "COMMENT",
	TokenSubsystem:     "subsystem",
	TokenRoutine:       "routine",
	TokenSimpleRoutine: "simpleroutine",
	TokenType_:         "type",
	TokenImport:        "import",
	TokenUImport:       "uimport",
	TokenSImport:       "simport",
	TokenSkip:          "skip",
	TokenServerPrefix:  "serverprefix",
	TokenUserPrefix:    "userprefix",
	TokenServerDemux:   "serverdemux",
	TokenKernelUser:    "kerneluser",
	TokenKernelServer:  "kernelserver",
	TokenIn:            "in",
	TokenOut:           "out",
	TokenInOut:         "inout",
	TokenRequestPort:   "requestport",
	TokenReplyPort:     "replyport",
	TokenSReplyPort:    "sreplyport",
	TokenUReplyPort:    "ureplyport",
	TokenWaitTime:      "waittime",
	TokenMsgOption:     "msgoption",
	TokenMsgSeqno:      "msgseqno",
	TokenArray:         "array",
	TokenOf:            "of",
	TokenStruct:        "struct",
	TokenCString:       "c_string",
	TokenIsLong:        "islong",
	TokenIsNotLong:     "isnotlong",
	TokenDealloc:       "dealloc",
	TokenNotDealloc:    "notdealloc",
	TokenServerCopy:    "servercopy",
	TokenCountInOut:    "countinout",
	TokenColon:         ":",
	TokenSemicolon:     ";",
	TokenComma:         ",",
	TokenLParen:        "(",
	TokenRParen:        ")",
	TokenLBracket:      "[",
	TokenRBracket:      "]",
	TokenLBrace:        "{",
	TokenRBrace:        "}",
	TokenAssign:        "=",
	TokenStar:          "*",
	TokenCaret:         "^",
	TokenTilde:         "~",
	TokenPlus:          "+",
	TokenMinus:         "-",
	TokenSlash:         "/",
	TokenPipe:          "|",
	TokenAmpersand:     "&",
	TokenLt:            "<",
	TokenGt:            ">",
	TokenDot:           ".",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsKeyword reports whether t is one of the reserved words of the
// definition language.
func (t TokenType) IsKeyword() bool {
	return t > keywordBeg && t < keywordEnd
}

// IsDirection reports whether t introduces an argument direction.
func (t TokenType) IsDirection() bool {
	return t >= TokenIn && t <= TokenMsgSeqno
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string // source text; unescaped contents for strings
	Value   uint32 // numeric value of TokenNumber
	Line    int
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenString:
		return `"` + t.Literal + `"`
	}
	return t.Literal
}

// keywords maps lower-cased keyword strings to token types
var keywords = map[string]TokenType{}

func init() {
	for tt := keywordBeg + 1; tt < keywordEnd; tt++ {
		keywords[tokenNames[tt]] = tt
	}
}

// LookupIdent returns the token type for a word (keyword or IDENT).
// Keywords match regardless of case.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return TokenIdent
}
