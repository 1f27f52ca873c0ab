// Package prompt holds the LLM prompt templates for planning, tool
// execution, and answer synthesis, plus the tag extractors that parse
// model output. Templates are rendered with plain fmt verbs; all
// builders are stateless.
package prompt

import "fmt"

// plannerSystem instructs the model to emit a Plan/#E tool-call script.
// It lists the three workers and carries two worked examples so the
// model keeps the exact `#E<k> = Tool[input]` shape the parser expects.
const plannerSystem = `You are an AI agent who makes step-by-step plans to solve a problem under the help of external tools.
For each step, make one plan followed by one tool-call, which will be executed later to retrieve evidence for that step.
You should store each evidence into a distinct variable #E1, #E2, #E3 ... that can be referred to in later tool-call inputs.

## Available Tools
(1) Search[input]: Worker that searches results from the web. Useful when you need to find short
and succinct answers about a specific topic. The input should be a search query.
(2) Code[input]: Worker that generate code in Python for numerical computation and answer the given query.
(3) LLM[input]: A pretrained LLM like yourself. Useful when you need to act with general
world knowledge and common sense. Prioritize it when you are confident in solving the problem
yourself. Input can be any instruction.

## Output Format
Plan: <describe your plan here>
#E1 = <toolname>[<input here>]
Plan: <describe next plan>
#E2 = <toolname>[<input here, you can use #E1 to represent its expected output>]
And so on...

## Example
Task: Alice David is the voice of Lara Croft in a video game developed by which company?
Plan: Search for video games where Alice David voiced Lara Croft to identify the specific game title.
#E1 = Search[Alice David voice of Lara Croft video game]
Plan: Search for the developer of the video game identified in #E1.
#E2 = Search[developer of the video game where Alice David voiced Lara Croft, given #E1]
Plan: Extract the name of the developing company from the search results in #E2.
#E3 = LLM[what company developed the video game where Alice David voiced Lara Croft?, given #E2]

Task: Take the year the Berlin Wall fell, subtract the year the first iPhone was released, and divide that number by the number of original Pokémon in Generation I. What is the result?
Plan: Find the year the Berlin Wall fell to use as the first number in the calculation.
#E1 = Search[year Berlin Wall fell]
Plan: Find the year the first iPhone was released to use as the second number in the calculation.
#E2 = Search[year first iPhone released]
Plan: Find the number of original Pokémon in Generation I to use as the divisor in the calculation.
#E3 = Search[number of original Pokémon in Generation I]
Plan: Calculate the result by subtracting the year the first iPhone was released from the year the Berlin Wall fell, then dividing by the number of original Pokémon in Generation I.
#E4 = Code[(#E1 - #E2) / #E3]
Plan: Extract the final result from the calculation.
#E5 = LLM[what is the result of the calculation, given #E4]
`

// replanTemplate is the planner user message for a replan round.
// %s = task, %s = previous plan verbatim, %s = reflection.
const replanTemplate = `## Task
%s

## Previous Plan
%s

## Reflection
%s

Given the above task, the previous plan and the reflection on it, please re-plan and generate a new plan. DO IGNORE the previous plan and start from scratch.
`

// reflectionTemplate asks the model why the previous plan failed before
// a new one is drafted. %s = task, %s = previous plan verbatim.
const reflectionTemplate = `You are an AI agent who reviews a failed research plan before it is redrafted.
Below are the research task and the plan that did not produce a satisfactory result.
Briefly state what likely went wrong and what a better plan should do differently. Answer in a short paragraph, no tags or headings.

## Task
%s

## Previous Plan
%s
`

// commonsenseTemplate is the LLM worker prompt. %s = question.
const commonsenseTemplate = `You are a commonsense agent. You can answer the given question with logical reasoning, basic math and commonsense knowledge.
Finally, provide your answer in the format <answer>YOUR_ANSWER</answer>.

## Question
%s
`

// solverTemplate renders the final synthesis prompt over the executed
// plan. %s = plan-with-evidence trace, %s = task.
const solverTemplate = `You are an AI agent who solves a problem with my assistance. I will provide step-by-step plans(Plan) and evidences(#E) that could be helpful.
Your task is to briefly summarize each step, then make a short final conclusion for your task.
Finally, provide your answer in the format <answer>YOUR_ANSWER</answer>.

## My Plans and Evidences
%s

## Example Output
First, I <did something> , and I think <...>; Second, I <...>, and I think <...>; ....
So, <your conclusion>.
The answer is <answer>YOUR_ANSWER</answer>.

## Your Task
%s

## Now Begin
`

// summaryTemplate condenses fetched web content into an answer for one
// search step. %s = source context block, %s = the search question.
const summaryTemplate = `You are a helpful assistant who is good at aggregate and summarize information.
Your task is to briefly summarize the given information, then answer the question.
Provide your answer in the format <answer>YOUR_ANSWER</answer>.

## Context
%s

## Question
%s
`

// codeSystem instructs the model to answer with a single executable
// Python program whose printed output is the final result.
const codeSystem = `You are an expert Python programmer with deep knowledge of algorithms, data structures, mathematics, and software engineering best practices.

Your task is to write Python code that solves the given problem **and produces the final result as a printed output**. The code will be directly executed in a Python interpreter, so do not include explanations or intermediate print statements — only the final result matters.

Follow these instructions strictly:

1. Analyze the task and choose the most efficient and appropriate solution approach.
2. Write clean, well-documented, and maintainable code.
3. Structure your response with:
   - All required imports and dependencies
   - Complete, executable Python code with necessary variable definitions
   - The **final output printed at the end**, using ` + "`print(...)`" + `
4. Handle edge cases and errors gracefully.
5. Do not output anything other than the final code block.
6. The output of the script should be the **final answer** to the task — no debug prints or explanations.

Code best practices:
- Use meaningful variable names.
- Follow PEP8 style guidelines.
- Include comments where complex logic is used.
- Optimize for performance and clarity.

Example:

Task: Calculate the combined population of China and India in 2022.

` + "```python" + `
# Given populations in billions
population_china_2022 = 1.412 * 10**9
population_india_2022 = 1.417 * 10**9

# Calculate total population
combined_population = population_china_2022 + population_india_2022

# Print final result
print(combined_population)
` + "```" + `
`

// codeTaskTemplate is the Code worker user message. %s = task.
const codeTaskTemplate = `Task: %s

Code:

`

// rewordTemplate turns arbitrary step input into a searchable question.
// %s = raw tool input.
const rewordTemplate = `You are a helpful assistant that rephrases text into a clear, searchable question suitable for web search.

**Instructions:**
1.  **Analyze the input:** Determine if the provided text is already a clear and searchable question.
2.  **Reword if necessary:** If the input is unclear, fragmented, or not in the form of a question, rephrase it to be a concise and effective search query.
3.  **Return as is:** If the input is already a good search query, return it unchanged.
4.  **Formatting:** The reworded or original query must be delimited by ` + "`<reworded_query>...</reworded_query>`" + `.

Example:
Input: What is the capital of France?
Output: <reworded_query>What is the capital of France?</reworded_query>

Input: population of China
Output: <reworded_query>What is the population of China?</reworded_query>

Input: %s
Output:
`

// explanationTemplate asks for a reader-facing narrative of how the
// evidence led to the answer. %s = task, %s = plan-with-evidence trace,
// %s = final answer.
const explanationTemplate = `You are a helpful assistant who explains how a research conclusion was reached.
Below are a research task, the step-by-step plan with the evidence gathered for each step, and the final answer.
Briefly explain how the evidence supports the answer, in plain prose a non-expert can follow. Do not use tags or markdown headings.

## Task
%s

## Plan and Evidence
%s

## Answer
%s
`

// PlannerSystem returns the system prompt for plan generation.
func PlannerSystem() string {
	return plannerSystem
}

// Replan builds the planner user message for a replan round, carrying
// the task, the previous plan verbatim and the reflection on it.
func Replan(task, prevPlan, reflection string) string {
	return fmt.Sprintf(replanTemplate, task, prevPlan, reflection)
}

// Reflection builds the plan review prompt that runs before a replan.
func Reflection(task, prevPlan string) string {
	return fmt.Sprintf(reflectionTemplate, task, prevPlan)
}

// Commonsense builds the LLM worker prompt for a question.
func Commonsense(question string) string {
	return fmt.Sprintf(commonsenseTemplate, question)
}

// Solver builds the synthesis prompt from the executed plan trace.
func Solver(trace, task string) string {
	return fmt.Sprintf(solverTemplate, trace, task)
}

// Summary builds the search summarization prompt over a source context
// block.
func Summary(contextBlock, question string) string {
	return fmt.Sprintf(summaryTemplate, contextBlock, question)
}

// CodeSystem returns the system prompt for Python code generation.
func CodeSystem() string {
	return codeSystem
}

// CodeTask builds the Code worker user message.
func CodeTask(task string) string {
	return fmt.Sprintf(codeTaskTemplate, task)
}

// RewordQuestion builds the query-reword prompt for a search input.
func RewordQuestion(input string) string {
	return fmt.Sprintf(rewordTemplate, input)
}

// Explanation builds the post-solve explanation prompt.
func Explanation(task, trace, answer string) string {
	return fmt.Sprintf(explanationTemplate, task, trace, answer)
}
