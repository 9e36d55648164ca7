package generation

import (
	"context"
	"fmt"
	"strings"

	"scholarai/internal/model"
)

const requirementsBase = "gradio>=4.0.0\n"

// DefaultRequirements is used when a build produced no manifest.
const DefaultRequirements = requirementsBase

const prototypeSystemPrompt = "You are an expert Python developer. Generate a complete, runnable Gradio application. " +
	"The code must:\n" +
	"1. Be syntactically correct Python 3.10+\n" +
	"2. Include all necessary imports\n" +
	"3. Use Gradio 4.x API (`import gradio as gr`)\n" +
	"4. Include a `if __name__ == '__main__': demo.launch()` block\n" +
	"5. Have inline comments explaining key steps\n" +
	"6. Handle errors gracefully\n\n" +
	"Return ONLY the Python code — no markdown fences, no explanation."

const placeholderApp = "# LLM_API_KEY not configured.\n" +
	"# Set it in your environment to enable AI prototype generation.\n\n" +
	"import gradio as gr\n\n" +
	"with gr.Blocks() as demo:\n" +
	"    gr.Markdown('# Prototype placeholder')\n" +
	"    gr.Markdown('Configure LLM_API_KEY and rebuild.')\n\n" +
	"if __name__ == '__main__':\n" +
	"    demo.launch()\n"

type prototypeTemplate struct {
	task         string
	requirements string
}

var prototypeTemplates = map[string]prototypeTemplate{
	model.PrototypeClassifier: {
		task: "Build a text classification Gradio app. " +
			"Include: (1) a Training tab where the user pastes CSV data with 'text' and 'label' columns " +
			"and trains a scikit-learn TF-IDF + LogisticRegression pipeline, " +
			"(2) a Prediction tab where the user types text and gets the predicted class with confidence. " +
			"Use gr.Tabs, gr.Textbox, gr.Dataframe, gr.Label.",
		requirements: requirementsBase + "scikit-learn>=1.3.0\npandas>=2.0.0\n",
	},
	model.PrototypeRecommender: {
		task: "Build a content-based recommendation Gradio app. " +
			"Include: (1) a Dataset tab to paste CSV data with 'id', 'title', and 'description' columns, " +
			"(2) a Recommend tab where the user types a query and gets the top-5 most similar items " +
			"using TF-IDF cosine similarity. Display results in a gr.Dataframe.",
		requirements: requirementsBase + "scikit-learn>=1.3.0\npandas>=2.0.0\n",
	},
	model.PrototypeChatbot: {
		task: "Build a chatbot Gradio app using an OpenAI-compatible chat completions API. " +
			"The user types messages into a gr.ChatInterface. Each message is sent through the openai Python SDK " +
			"(LLM_API_KEY and LLM_BASE_URL from environment). " +
			"Maintain conversation history. Handle API errors gracefully with a friendly error message.",
		requirements: requirementsBase + "openai>=1.40.0\n",
	},
	model.PrototypeTextTool: {
		task: "Build a text analysis Gradio app with three tabs: " +
			"(1) Summarisation — takes long text and returns a bullet-point summary using basic NLP, " +
			"(2) Keyword Extraction — returns top keywords using TF-IDF, " +
			"(3) Readability — returns Flesch reading ease score and grade level. " +
			"Use only standard libraries + scikit-learn + textstat.",
		requirements: requirementsBase + "scikit-learn>=1.3.0\ntextstat>=0.7.0\n",
	},
	model.PrototypeDashboard: {
		task: "Build a data dashboard Gradio app. " +
			"Include: (1) a Data tab where the user uploads a CSV file, " +
			"(2) a Charts tab showing: bar chart of value counts for the first categorical column, " +
			"histogram of the first numeric column, correlation heatmap. " +
			"Use Plotly for all charts (gr.Plot). Handle files with up to 10 000 rows.",
		requirements: requirementsBase + "plotly>=5.0.0\npandas>=2.0.0\n",
	},
}

// CodeGenerator turns a prototype description into a Gradio app and its requirements.
type CodeGenerator struct {
	gen       Generator
	maxTokens int
}

func NewCodeGenerator(gen Generator, maxTokens int) *CodeGenerator {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &CodeGenerator{gen: gen, maxTokens: maxTokens}
}

func (g *CodeGenerator) Generate(ctx context.Context, p model.Prototype) (code, requirements string, err error) {
	if g.gen == nil || !g.gen.Configured() {
		return placeholderApp, requirementsBase, nil
	}

	tmpl, ok := prototypeTemplates[p.Type]
	if !ok {
		tmpl = prototypeTemplate{
			task:         "Build a general-purpose Gradio app for: " + p.Description,
			requirements: requirementsBase,
		}
	}

	user := fmt.Sprintf("Project: %s\nType: %s\nDescription: %s\nInput/Data context: %s\n\nTask: %s",
		p.Title, p.Type, p.Description, p.InputDescription, tmpl.task)

	out, err := g.gen.Generate(ctx, prototypeSystemPrompt, user, g.maxTokens)
	if err != nil {
		return "", "", err
	}
	return StripCodeFences(out), tmpl.requirements, nil
}

// StripCodeFences removes a leading ``` line and a trailing ``` line if present.
func StripCodeFences(code string) string {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "```") {
		return code
	}
	lines := strings.Split(code, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(lines[n-1], "```") {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

// Readme is the README.md shipped in the download archive.
func Readme(p model.Prototype) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", p.Description)
	}
	fmt.Fprintf(&b, "Prototype type: %s\n\n", p.Type)
	b.WriteString("## Run locally\n\n")
	b.WriteString("```bash\npip install -r requirements.txt\npython app.py\n```\n\n")
	b.WriteString("Then open http://127.0.0.1:7860 in your browser.\n")
	return b.String()
}
