package interviewer

import (
	"encoding/json"

	"github.com/Ravindra162/prepAI-sub000/internal/models"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

// problemBank holds the problems the dev backend can assign. Small on
// purpose; the real backend owns problem selection.
var problemBank = []models.Problem{
	{
		ID:          1,
		Title:       "Two Sum",
		Description: "Given an array of integers nums and an integer target, return the indices of the two numbers that add up to target. Exactly one solution exists.",
		Difficulty:  "easy",
		Category:    "arrays",
		Constraints: "2 <= nums.length <= 10^4",
		TestCases: []models.TestCase{
			{Input: raw(`{"nums":[2,7,11,15],"target":9}`), Expected: raw(`[0,1]`)},
			{Input: raw(`{"nums":[3,2,4],"target":6}`), Expected: raw(`[1,2]`)},
			{Input: raw(`{"nums":[3,3],"target":6}`), Expected: raw(`[0,1]`)},
		},
		Templates: map[models.Language]string{
			models.LangPython:     "def two_sum(nums, target):\n    pass\n",
			models.LangJavaScript: "function twoSum(nums, target) {\n}\n",
			models.LangJava:       "class Solution {\n    public int[] twoSum(int[] nums, int target) {\n        return new int[0];\n    }\n}\n",
			models.LangCPP:        "vector<int> twoSum(vector<int>& nums, int target) {\n    return {};\n}\n",
		},
	},
	{
		ID:          2,
		Title:       "Valid Anagram",
		Description: "Given two strings s and t, return true if t is an anagram of s, and false otherwise.",
		Difficulty:  "easy",
		Category:    "strings",
		TestCases: []models.TestCase{
			{Input: raw(`{"s":"anagram","t":"nagaram"}`), Expected: raw(`true`)},
			{Input: raw(`{"s":"rat","t":"car"}`), Expected: raw(`false`)},
		},
		Templates: map[models.Language]string{
			models.LangPython:     "def is_anagram(s, t):\n    pass\n",
			models.LangJavaScript: "function isAnagram(s, t) {\n}\n",
			models.LangJava:       "class Solution {\n    public boolean isAnagram(String s, String t) {\n        return false;\n    }\n}\n",
			models.LangCPP:        "bool isAnagram(string s, string t) {\n    return false;\n}\n",
		},
	},
}
